package internal

import (
	"fmt"
	"time"

	"cdchat/internal/proto"
)

// Router fans a text message out to the members of a channel.
type Router struct {
	registry     *Registry
	log          *activityLog
	writeTimeout time.Duration
	echoOnce     bool
}

// Delivery summarises one Route call.
type Delivery struct {
	Recipients []ConnID
	Echoes     int
	Failures   int
}

func newRouter(registry *Registry, log *activityLog, writeTimeout time.Duration, echoOnce bool) *Router {
	return &Router{
		registry:     registry,
		log:          log,
		writeTimeout: writeTimeout,
		echoOnce:     echoOnce,
	}
}

// Route sends "(name): text" to every other connection that is a member of
// channel and echoes the raw text back to the sender. Unless echoOnce is set,
// the sender gets one echo per matching recipient.
func (r *Router) Route(sender *Connection, channel, text string) Delivery {
	forwarded := proto.NewText(fmt.Sprintf("(%s): %s", sender.DisplayName(), text), channel)
	echo := proto.NewText(text, channel)

	var d Delivery
	for _, c := range r.registry.All() {
		if c.id == sender.id || !c.IsMember(channel) {
			continue
		}

		d.Recipients = append(d.Recipients, c.id)
		if err := c.sendMessage(forwarded, r.writeTimeout); err != nil {
			d.Failures++
			r.log.logError(c.id, err)
		}

		if r.echoOnce && d.Echoes > 0 {
			continue
		}
		d.Echoes++
		if err := sender.sendMessage(echo, r.writeTimeout); err != nil {
			d.Failures++
			r.log.logError(sender.id, err)
		}
	}
	return d
}
