package progress

import (
	"encoding/json"
	"log"

	"github.com/autodock-deploy/models"
)

// Subscriber abstracts a streaming client
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages live event subscriptions keyed by deployment id. The
// empty id subscribes to events from every deployment.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

type message struct {
	deploymentID string
	payload      []byte
}

type subscription struct {
	deploymentID string
	client       Subscriber
}

// NewHub creates a running Hub
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.deploymentID]; !ok {
				h.clients[sub.deploymentID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.deploymentID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.deploymentID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.deploymentID)
				}
			}
		case msg := <-h.broadcast:
			h.deliver(msg.deploymentID, msg.payload)
			if msg.deploymentID != "" {
				h.deliver("", msg.payload)
			}
		}
	}
}

func (h *Hub) deliver(key string, payload []byte) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// Register adds a client to a deployment stream
func (h *Hub) Register(deploymentID string, client Subscriber) {
	h.register <- subscription{deploymentID: deploymentID, client: client}
}

// Unregister removes a client
func (h *Hub) Unregister(deploymentID string, client Subscriber) {
	h.unreg <- subscription{deploymentID: deploymentID, client: client}
}

// Emit broadcasts an event to the deployment's subscribers. Events are
// dropped rather than blocking when the hub cannot keep up.
func (h *Hub) Emit(deploymentID string, event models.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("Failed to encode progress event:", err)
		return
	}
	select {
	case h.broadcast <- message{deploymentID: deploymentID, payload: payload}:
	default:
		log.Println("Progress hub backlogged, dropping event for", deploymentID)
	}
}
