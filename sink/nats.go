package sink

import (
	"errors"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/lcx/logrelay/record"
)

// NATSSink publishes encoded records to a NATS subject.
//
// nats.Conn.Publish only hands the payload to the client's outbound
// buffer; a broken connection is reported later through the connection's
// async error handler. The sink therefore implements ErrorNotifier and
// forwards those async failures to the spool, which is how a swallowed
// transport error still triggers a rollover.
type NATSSink struct {
	name    string
	subject string

	mu      sync.Mutex
	conn    *nats.Conn
	onError func(error)
}

// NATSSinkConfig configures a NATS sink.
type NATSSinkConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	// ConnName is an optional NATS connection name.
	ConnName string `mapstructure:"connName"`
}

// NewNATSSink connects to the NATS server and returns the sink.
func NewNATSSink(name string, cfg NATSSinkConfig) (*NATSSink, error) {
	if cfg.Subject == "" {
		return nil, errors.New("nats sink: subject is empty")
	}

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	s := &NATSSink{name: name, subject: cfg.Subject}

	opts := []nats.Option{
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			s.notify(err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.notify(err)
			}
		}),
	}
	if cfg.ConnName != "" {
		opts = append(opts, nats.Name(cfg.ConnName))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Name implements Sink.
func (s *NATSSink) Name() string {
	return s.name
}

// Deliver publishes the encoded record. A nil return only means the
// client buffered the payload; see ErrorNotifier for the failure path.
func (s *NATSSink) Deliver(rec *record.Record) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("nats sink: connection closed")
	}
	return conn.Publish(s.subject, rec.Bytes())
}

// SetErrorHandler implements ErrorNotifier.
func (s *NATSSink) SetErrorHandler(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *NATSSink) notify(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Close drains pending publishes and closes the connection. Deliver
// calls racing with Close observe a closed connection and fail cleanly.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Drain()
}
