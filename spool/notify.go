package spool

import "fmt"

// Channel is one named stream of the host logging facade, used only to
// surface rollover notifications to an operator.
type Channel interface {
	EmitFatal(msg string, err error)
}

// Facade looks up notification channels by name.
type Facade interface {
	GetChannel(name string) Channel
}

// notifier emits a best-effort notification every time the chain
// advances past a failed sink. It never lets a notification failure
// leak back into the chain walk.
type notifier struct {
	facade Facade
	target string
}

func (n *notifier) notifyAdvance(sinkName string, cause error) {
	if n == nil || n.facade == nil || n.target == "" {
		return
	}

	// A broken notification path must not abort the chain walk.
	defer func() { _ = recover() }()

	ch := n.facade.GetChannel(n.target)
	if ch == nil {
		return
	}
	ch.EmitFatal(fmt.Sprintf("delivery to sink '%s' failed, rolling over to next sink", sinkName), cause)
}
