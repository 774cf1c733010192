package events

import (
	"fmt"

	"github.com/Dosada05/ladder-system/services"
)

// LadderRoomID возвращает имя websocket-комнаты лестницы.
func LadderRoomID(ladderID int) string {
	return fmt.Sprintf("ladder_%d", ladderID)
}

// hubSink адаптирует Hub под services.EventSink: события вызовов уходят в
// комнату соответствующей лестницы.
type hubSink struct {
	hub *Hub
}

func NewHubSink(hub *Hub) services.EventSink {
	return &hubSink{hub: hub}
}

func (s *hubSink) Publish(ladderID int, event services.Event) error {
	return s.hub.BroadcastToRoom(LadderRoomID(ladderID), event)
}
