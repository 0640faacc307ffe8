package record

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Field is a single key/value attribute attached to a record.
type Field struct {
	Key   string
	Value string
}

// Record is an immutable snapshot of one log event.
//
// A record is frozen at creation time: the timestamp, identity and every
// field value are captured when New is called, so later mutation of the
// producer's ambient state cannot corrupt a buffered record. Ownership
// follows the record through the pipeline: the producer owns it until it
// is enqueued, the spool owns it until it is handed to the drain worker,
// and the worker owns it for the duration of the chain walk.
type Record struct {
	ID     uuid.UUID
	Time   time.Time
	Level  Level
	Msg    string
	Err    error
	fields []Field
}

// New creates a frozen record carrying the given severity and message.
// The identity and timestamp are fixed here, never at delivery time.
func New(level Level, msg string) *Record {
	return &Record{
		ID:    uuid.New(),
		Time:  time.Now(),
		Level: level,
		Msg:   msg,
	}
}

// With attaches a key/value field and returns the record for chaining.
// It must only be called by the producer before the record is enqueued;
// after that the record belongs to the spool.
func (r *Record) With(key, value string) *Record {
	r.fields = append(r.fields, Field{Key: key, Value: value})
	return r
}

// WithErr attaches a causing error to the record.
func (r *Record) WithErr(err error) *Record {
	r.Err = err
	return r
}

// Fields returns a copy of the attached fields.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Encode appends the record as a single JSON line to buf.
func (r *Record) Encode(buf *bytes.Buffer) {
	appendBeginMarker(buf)

	appendKey(buf, "time")
	appendTime(buf, r.Time)

	appendKey(buf, "level")
	appendString(buf, r.Level.String())

	appendKey(buf, "id")
	appendString(buf, r.ID.String())

	for _, f := range r.fields {
		appendKey(buf, f.Key)
		appendString(buf, f.Value)
	}

	if r.Err != nil {
		appendKey(buf, "error")
		appendString(buf, r.Err.Error())
	}

	appendKey(buf, "msg")
	appendString(buf, r.Msg)

	appendEndMarker(buf)
}

// Bytes returns the encoded record as a fresh byte slice.
func (r *Record) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(256)
	r.Encode(&buf)
	return buf.Bytes()
}
