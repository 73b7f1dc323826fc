package medium

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	uuidLib "github.com/google/uuid"
	"github.com/gorilla/websocket"

	"samplr/utilities"
)

type ErrWSConnAbsent struct {
	Message string
	ID      string
}

func (e *ErrWSConnAbsent) Error() string {
	return fmt.Sprintf("%s, ID: %s", e.Message, e.ID)
}

// Socket holds the live in-app connections of each profile. A profile may
// be connected from several devices at once.
type Socket struct {
	*sync.RWMutex
	ConnSet map[string]*UserConnObject
}

type UserConnObject struct {
	ConnObjs    []*ConnObject
	LastChecked time.Time
}

type ConnObject struct {
	ID    string
	Conn  *websocket.Conn
	Close chan struct{}

	// gorilla allows one concurrent writer per connection.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

const (
	pingInterval = time.Second * 30
	writeTimeout = time.Second * 10
)

func (c *ConnObject) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *ConnObject) markClosed() {
	c.closeOnce.Do(func() { close(c.Close) })
}

func NewWebSocket() *Socket {
	return &Socket{
		RWMutex: new(sync.RWMutex),
		ConnSet: make(map[string]*UserConnObject),
	}
}

func Upgrade() websocket.Upgrader {
	return websocket.Upgrader{
		Subprotocols: []string{"websocket"},
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Add registers conn for profileID and keeps it alive with pings until the
// client goes away.
func (s *Socket) Add(profileID string, newUserConn *websocket.Conn) {
	log := utilities.NewLoggerWithFields(
		"websocket.Add", map[string]interface{}{
			"id": profileID,
		},
	)

	connObj := &ConnObject{
		Conn:  newUserConn,
		Close: make(chan struct{}),
		ID:    uuidLib.NewString(),
	}

	connObj.Conn.SetCloseHandler(
		func(code int, text string) error {
			log.Infof("Received close message with code %d and text %s for id %s:%s", code, text, profileID, connObj.ID)
			connObj.markClosed()
			return nil
		},
	)

	s.Lock()
	if _, ok := s.ConnSet[profileID]; !ok {
		s.ConnSet[profileID] = &UserConnObject{
			ConnObjs: make([]*ConnObject, 0),
		}
	}
	s.ConnSet[profileID].ConnObjs = append(s.ConnSet[profileID].ConnObjs, connObj)
	total := len(s.ConnSet[profileID].ConnObjs)
	s.Unlock()

	log.Debugf("Adding new ws connection %s for profile %s, total conns: %d", connObj.ID, profileID, total)

	// the feed is write only; reading drives pong and close handling
	go func() {
		defer connObj.markClosed()
		_ = connObj.Conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		connObj.Conn.SetPongHandler(func(string) error {
			return connObj.Conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		})
		for {
			if _, _, err := connObj.Conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// to check health of connection
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer func() {
			log.Infof("Closing the ws connection for %s:%s", profileID, connObj.ID)
			ticker.Stop()
			err := connObj.write(
				websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			if err != nil {
				log.WithError(err).Debug("sending close msg failed")
			}
			s.Remove(profileID, connObj.ID)
		}()

		for {
			if err := connObj.write(websocket.PingMessage, []byte{}); err != nil {
				log.WithError(err).Errorf("ping failed, id: %s", profileID)
				return
			}

			s.Lock()
			if userConn, ok := s.ConnSet[profileID]; ok {
				userConn.LastChecked = time.Now()
			}
			s.Unlock()

			select {
			case <-connObj.Close:
				log.Debugf("Received ping close for %s", profileID)
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Socket) Remove(profileID string, connID string) {
	log := utilities.NewLoggerWithFields(
		"websocket.Remove", map[string]interface{}{
			"id": profileID,
		},
	)

	s.Lock()
	defer s.Unlock()
	userConnObj, ok := s.ConnSet[profileID]
	if !ok || userConnObj == nil {
		// nothing to remove
		return
	}

	acceptedConns := make([]*ConnObject, 0)
	for _, connObj := range userConnObj.ConnObjs {
		if connObj.ID == connID {
			if err := connObj.Conn.Close(); err != nil {
				log.WithError(err).Errorf("error closing ws conn for id %s", profileID)
			}
			continue
		}
		acceptedConns = append(acceptedConns, connObj)
	}

	if len(acceptedConns) == 0 {
		delete(s.ConnSet, profileID)
	} else {
		s.ConnSet[profileID].ConnObjs = acceptedConns
	}
}

// Online reports whether profileID has at least one open connection.
func (s *Socket) Online(profileID string) bool {
	s.RLock()
	defer s.RUnlock()
	userConnObj, ok := s.ConnSet[profileID]
	return ok && len(userConnObj.ConnObjs) > 0
}

// PushMessage writes data to the newest connection of identifier, or to all
// of them when broadcast is set.
func (s *Socket) PushMessage(identifier string, data []byte, broadcast bool) error {
	log := utilities.NewLoggerWithFields(
		"websocket.PushMessage", map[string]interface{}{
			"id": identifier,
		},
	)

	s.RLock()
	userConnObj, ok := s.ConnSet[identifier]
	if !ok || userConnObj == nil || len(userConnObj.ConnObjs) < 1 {
		s.RUnlock()
		return &ErrWSConnAbsent{
			Message: "ws connection absent",
			ID:      identifier,
		}
	}

	connObjs := append([]*ConnObject(nil), userConnObj.ConnObjs...)
	s.RUnlock()

	if !broadcast {
		connObjs = connObjs[len(connObjs)-1:]
	}

	sent := false
	var pushErrors []string
	for _, connObj := range connObjs {
		if err := connObj.write(websocket.TextMessage, data); err != nil {
			pushErrors = append(pushErrors, err.Error())
			continue
		}
		sent = true
		log.Debugf("ws message sent to %s:%s", identifier, connObj.ID)
	}

	if !sent {
		return fmt.Errorf("ws message failed for %s: %s", identifier, strings.Join(pushErrors, ":"))
	}

	return nil
}
