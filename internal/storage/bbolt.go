package storage

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"socialmart/internal/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers        = []byte("users")
	bucketMessages     = []byte("messages")
	bucketMessageIndex = []byte("message_index")
)

type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketMessages, bucketMessageIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// conversationKey names the nested bucket holding both directions of a
// conversation. It does not depend on argument order.
func conversationKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(a + "\x00" + b)
}

// UpsertUser stores the user, keeping the original creation time when the
// user already exists.
func (s *BboltStorage) UpsertUser(user models.User) (models.User, error) {
	var stored DBUser
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		stored = DBUser{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
			CreatedAt:   s.now().UnixNano(),
		}
		if data := b.Get(stored.Key()); data != nil {
			var existing DBUser
			if err := existing.UnmarshalBinary(data); err != nil {
				return fmt.Errorf("failed to unmarshal user: %w", err)
			}
			stored.CreatedAt = existing.CreatedAt
			if stored.DisplayName == "" {
				stored.DisplayName = existing.DisplayName
			}
			if stored.AvatarURL == "" {
				stored.AvatarURL = existing.AvatarURL
			}
		}

		data, err := stored.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(stored.Key(), data)
	})
	if err != nil {
		return models.User{}, err
	}
	return stored.toModel(), nil
}

func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user DBUser
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		return user.UnmarshalBinary(data)
	})
	if err != nil {
		return models.User{}, err
	}
	return user.toModel(), nil
}

// ListUsers returns all users ordered by display name.
func (s *BboltStorage) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			users = append(users, dbUser.toModel())
			return nil
		})
	})
	sort.Slice(users, func(i, j int) bool {
		return users[i].DisplayName < users[j].DisplayName
	})
	return users, err
}

// CreateMessage persists a new message and returns the stored record with
// its assigned id and creation time.
func (s *BboltStorage) CreateMessage(msg models.NewMessage) (models.Message, error) {
	if err := msg.Validate(); err != nil {
		return models.Message{}, err
	}

	dbMessage := DBMessage{
		ID:         uuid.NewString(),
		Sender:     msg.Sender,
		Receiver:   msg.Receiver,
		Content:    msg.Content,
		SharedPost: msg.SharedPost,
		CreatedAt:  s.now().UTC().UnixNano(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		convKey := conversationKey(msg.Sender, msg.Receiver)
		convBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists(convKey)
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		seq, err := convBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		dbMessage.Seq = seq

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := convBucket.Put(dbMessage.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		ref := DBMessageRef{ID: dbMessage.ID, Conversation: string(convKey), Seq: seq}
		refData, err := ref.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMessageIndex).Put(ref.Key(), refData)
	})
	if err != nil {
		return models.Message{}, err
	}

	return dbMessage.toModel(), nil
}

func (s *BboltStorage) GetMessage(id string) (models.Message, error) {
	var dbMsg DBMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		refData := tx.Bucket(bucketMessageIndex).Get([]byte(id))
		if refData == nil {
			return fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		var ref DBMessageRef
		if err := ref.UnmarshalBinary(refData); err != nil {
			return err
		}

		convBucket := tx.Bucket(bucketMessages).Bucket([]byte(ref.Conversation))
		if convBucket == nil {
			return fmt.Errorf("conversation for message %s: %w", id, models.ErrNotFound)
		}
		data := convBucket.Get(seqKey(ref.Seq))
		if data == nil {
			return fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		return dbMsg.UnmarshalBinary(data)
	})
	if err != nil {
		return models.Message{}, err
	}
	return dbMsg.toModel(), nil
}

// ListConversation returns both directions of the conversation between a
// and b, oldest first.
func (s *BboltStorage) ListConversation(a, b string) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket(conversationKey(a, b))
		if convBucket == nil {
			return nil // No messages yet
		}
		return convBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, dbMsg.toModel())
			return nil
		})
	})
	return messages, err
}

// MarkRead flips every unread message sent by senderID to receiverID and
// returns how many were changed.
func (s *BboltStorage) MarkRead(senderID, receiverID string) (int, error) {
	updated := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket(conversationKey(senderID, receiverID))
		if convBucket == nil {
			return nil
		}

		// Collect first: bbolt cursors must not be used across Put.
		var pending []DBMessage
		err := convBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if !dbMsg.Read && dbMsg.Sender == senderID && dbMsg.Receiver == receiverID {
				pending = append(pending, dbMsg)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, dbMsg := range pending {
			dbMsg.Read = true
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			if err := convBucket.Put(dbMsg.Key(), data); err != nil {
				return err
			}
		}
		updated = len(pending)
		return nil
	})
	return updated, err
}

// ListConversations returns a preview of every conversation userID takes
// part in, most recent first.
func (s *BboltStorage) ListConversations(userID string) ([]models.ConversationPreview, error) {
	previews := []models.ConversationPreview{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		messages := tx.Bucket(bucketMessages)
		return messages.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil // not a nested bucket
			}
			parts := bytes.SplitN(k, []byte{0}, 2)
			if len(parts) != 2 || (string(parts[0]) != userID && string(parts[1]) != userID) {
				return nil
			}
			convBucket := messages.Bucket(k)

			var preview models.ConversationPreview
			found := false
			err := convBucket.ForEach(func(_, data []byte) error {
				var dbMsg DBMessage
				if err := dbMsg.UnmarshalBinary(data); err != nil {
					return err
				}
				switch userID {
				case dbMsg.Sender:
					preview.Counterpart = dbMsg.Receiver
				case dbMsg.Receiver:
					preview.Counterpart = dbMsg.Sender
					if !dbMsg.Read {
						preview.Unread++
					}
				default:
					return nil
				}
				preview.LastMessage = dbMsg.toModel()
				found = true
				return nil
			})
			if err != nil {
				return err
			}
			if found {
				previews = append(previews, preview)
			}
			return nil
		})
	})

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].LastMessage.CreatedAt.After(previews[j].LastMessage.CreatedAt)
	})
	return previews, err
}
