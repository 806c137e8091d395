package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/brainmemory/internal/metrics"
	"github.com/harun/brainmemory/internal/tracing"
	"github.com/harun/brainmemory/pkg/memory"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Memory is the read side of the tiered store exposed over the gateway
type Memory interface {
	Retrieve(key string) (any, bool, error)
	Search(query string, limit int) ([]memory.Match, error)
	Stats() (memory.MemoryStats, error)
	Context(n int) ([]string, error)
	Associations(key string) ([]string, bool, error)
}

// Config holds gateway configuration
type Config struct {
	Memory       Memory
	TickInterval time.Duration // 0 disables periodic stats
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Gateway serves websocket clients and pushes memory events to them
type Gateway struct {
	memory       Memory
	tickInterval time.Duration
	upgrader     websocket.Upgrader
	clients      *ClientRegistry
	router       *RPCRouter
	broadcaster  *EventBroadcaster
	logger       zerolog.Logger

	// regMu orders client registration against Stop
	regMu          sync.Mutex
	isShuttingDown atomic.Bool
	clientWG       sync.WaitGroup
	tickCancel     context.CancelFunc
	tickWG         sync.WaitGroup
	startOnce      sync.Once
	stopOnce       sync.Once
}

// New creates a new gateway
func New(cfg Config) (*Gateway, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory is required")
	}
	if cfg.TickInterval < 0 {
		return nil, fmt.Errorf("invalid tick interval: %s", cfg.TickInterval)
	}

	var onChange func(int)
	if cfg.Metrics != nil {
		gauge := cfg.Metrics.GatewayClients
		onChange = func(count int) { gauge.Set(float64(count)) }
	}
	clients := NewClientRegistry(onChange)

	g := &Gateway{
		memory:       cfg.Memory,
		tickInterval: cfg.TickInterval,
		clients:      clients,
		router:       NewRPCRouter(),
		broadcaster:  NewEventBroadcaster(clients, cfg.Logger),
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	g.registerBuiltinMethods()

	return g, nil
}

// Start starts the periodic stats emitter
func (g *Gateway) Start() {
	g.startOnce.Do(g.startTickEmitter)
}

// Stop announces shutdown, closes every client, and waits for their
// read loops to exit.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.regMu.Lock()
		g.isShuttingDown.Store(true)
		g.regMu.Unlock()
		g.logger.Info().Msg("Shutting down gateway")

		g.stopTickEmitter()

		g.broadcaster.Broadcast(EventServerShutdown, map[string]interface{}{
			"message": "Server is shutting down",
		})

		for _, client := range g.clients.GetAll() {
			_ = client.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			_ = client.Conn.Close()
		}
		g.clientWG.Wait()

		g.logger.Info().Msg("Gateway stopped")
	})
}

// Broadcast pushes an event to every connected client
func (g *Gateway) Broadcast(event string, data interface{}) {
	g.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an RPC method handler
func (g *Gateway) RegisterMethod(name string, handler RequestHandler) error {
	return g.router.RegisterMethod(name, handler)
}

// GetConnectedClients returns information about all connected clients
func (g *Gateway) GetConnectedClients() []ClientInfo {
	return g.clients.GetConnectedClients()
}

// ClientCount returns the number of connected clients
func (g *Gateway) ClientCount() int {
	return g.clients.Count()
}

// ServeHTTP upgrades the request to a websocket connection
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.isShuttingDown.Load() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to generate client ID")
		_ = conn.Close()
		return
	}

	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
	}

	// Welcome goes out before registration so it always precedes broadcasts
	if err := client.WriteJSON(EventMessage{
		Type:      "event",
		Event:     EventConnected,
		Data:      map[string]interface{}{"clientId": clientID},
		Timestamp: now.UnixMilli(),
		Seq:       g.broadcaster.Seq(),
	}); err != nil {
		g.logger.Warn().Err(err).Str("clientId", clientID).Msg("Failed to send welcome")
		_ = conn.Close()
		return
	}

	if !g.register(client) {
		_ = client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		_ = conn.Close()
		return
	}

	g.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go g.handleClient(client)
}

// register adds client unless Stop has begun. Stop sees every client
// registered before it set the shutdown flag.
func (g *Gateway) register(client *Client) bool {
	g.regMu.Lock()
	defer g.regMu.Unlock()

	if g.isShuttingDown.Load() {
		return false
	}
	g.clientWG.Add(1)
	g.clients.Add(client)
	return true
}

// handleClient reads requests from a client until it disconnects
func (g *Gateway) handleClient(client *Client) {
	defer g.clientWG.Done()
	defer func() {
		_ = client.Conn.Close()
		g.clients.Remove(client.ID)
		g.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		g.clients.UpdateActivity(client.ID)
		g.handleMessage(client, message)
	}
}

// handleMessage answers one RPC request inline
func (g *Gateway) handleMessage(client *Client, message []byte) {
	req, err := g.router.ParseRequest(message)
	if err != nil {
		resp := errorResponse("", InternalError, err.Error())
		if rpcErr, ok := err.(*RPCError); ok {
			resp.Error = rpcErr
		}
		g.send(client, resp)
		return
	}

	ctx := tracing.WithClientID(tracing.NewRequestContext(context.Background()), client.ID)
	logger := tracing.LoggerFromContext(ctx, g.logger)
	logger.Debug().
		Str("clientId", client.ID).
		Str("requestId", req.ID).
		Str("method", req.Method).
		Msg("Gateway received RPC request")

	g.send(client, g.router.RouteRequest(ctx, req))
}

func (g *Gateway) send(client *Client, resp *RPCResponse) {
	if err := client.WriteJSON(resp); err != nil {
		g.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Str("requestId", resp.ID).
			Msg("Failed to send response")
	}
}

func (g *Gateway) startTickEmitter() {
	if g.tickInterval <= 0 {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	g.tickCancel = cancel
	g.tickWG.Add(1)

	go func() {
		defer g.tickWG.Done()

		ticker := time.NewTicker(g.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				g.emitStats()
			}
		}
	}()
}

func (g *Gateway) stopTickEmitter() {
	if g.tickCancel != nil {
		g.tickCancel()
		g.tickCancel = nil
	}
	g.tickWG.Wait()
}

// emitStats broadcasts a stats snapshot when anyone is listening
func (g *Gateway) emitStats() {
	if g.clients.Count() == 0 {
		return
	}

	stats, err := g.memory.Stats()
	if err != nil {
		g.logger.Warn().Err(err).Msg("Skipping stats tick")
		return
	}
	g.broadcaster.Broadcast(EventBrainMemory, stats)
}
