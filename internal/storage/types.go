package storage

import (
	"encoding"
	"encoding/binary"
	"time"

	"socialmart/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID          string `msgpack:"id"`
	DisplayName string `msgpack:"displayName"`
	AvatarURL   string `msgpack:"avatarUrl"`
	CreatedAt   int64  `msgpack:"createdAt"` // Unix nanoseconds
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

func (u *DBUser) toModel() models.User {
	return models.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   time.Unix(0, u.CreatedAt).UTC(),
	}
}

type DBMessage struct {
	Seq        uint64 `msgpack:"seq"`
	ID         string `msgpack:"id"`
	Sender     string `msgpack:"sender"`
	Receiver   string `msgpack:"receiver"`
	Content    string `msgpack:"content"`
	SharedPost string `msgpack:"sharedPost"`
	Read       bool   `msgpack:"read"`
	CreatedAt  int64  `msgpack:"createdAt"` // Unix nanoseconds
}

// Key is the big-endian sequence so that cursor order is creation order.
func (m *DBMessage) Key() []byte {
	return seqKey(m.Seq)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func (m *DBMessage) toModel() models.Message {
	return models.Message{
		ID:         m.ID,
		Sender:     m.Sender,
		Receiver:   m.Receiver,
		Content:    m.Content,
		SharedPost: m.SharedPost,
		Read:       m.Read,
		CreatedAt:  time.Unix(0, m.CreatedAt).UTC(),
	}
}

// DBMessageRef locates a message by id.
type DBMessageRef struct {
	ID           string `msgpack:"id"`
	Conversation string `msgpack:"conversation"`
	Seq          uint64 `msgpack:"seq"`
}

func (r *DBMessageRef) Key() []byte {
	return []byte(r.ID)
}

func (r *DBMessageRef) MarshalBinary() (data []byte, err error) {
	type alias DBMessageRef
	return msgpack.Marshal((*alias)(r))
}

func (r *DBMessageRef) UnmarshalBinary(data []byte) error {
	type alias DBMessageRef
	return msgpack.Unmarshal(data, (*alias)(r))
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
