package gateway

import (
	"context"

	"github.com/harun/brainmemory/internal/tracing"
)

const defaultContextSize = 10

func (g *Gateway) registerBuiltinMethods() {
	_ = g.router.RegisterMethod("memory.stats", g.handleMemoryStats)
	_ = g.router.RegisterMethod("memory.retrieve", g.handleMemoryRetrieve)
	_ = g.router.RegisterMethod("memory.search", g.handleMemorySearch)
	_ = g.router.RegisterMethod("memory.context", g.handleMemoryContext)
	_ = g.router.RegisterMethod("memory.associations", g.handleMemoryAssociations)
	_ = g.router.RegisterMethod("gateway.clients", g.handleGatewayClients)
}

func (g *Gateway) handleMemoryStats(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return g.memory.Stats()
}

func (g *Gateway) handleMemoryRetrieve(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	key, ok := params["key"].(string)
	if !ok {
		return nil, invalidParams("key parameter is required and must be a string")
	}

	value, found, err := g.memory.Retrieve(key)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"key":   key,
		"found": found,
		"value": value,
	}, nil
}

func (g *Gateway) handleMemorySearch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, ok := params["query"].(string)
	if !ok {
		return nil, invalidParams("query parameter is required and must be a string")
	}

	limit := 10
	if v, ok := params["limit"].(float64); ok {
		limit = int(v)
	}

	logger := tracing.LoggerFromContext(ctx, g.logger)
	logger.Debug().
		Str("query", query).
		Int("limit", limit).
		Msg("Gateway memory search")

	matches, err := g.memory.Search(query, limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"query":   query,
		"matches": matches,
	}, nil
}

func (g *Gateway) handleMemoryContext(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	n := defaultContextSize
	if v, ok := params["n"].(float64); ok {
		n = int(v)
	}

	keys, err := g.memory.Context(n)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"keys": keys,
	}, nil
}

func (g *Gateway) handleMemoryAssociations(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	key, ok := params["key"].(string)
	if !ok {
		return nil, invalidParams("key parameter is required and must be a string")
	}

	linked, found, err := g.memory.Associations(key)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"key":          key,
		"found":        found,
		"associations": linked,
	}, nil
}

func (g *Gateway) handleGatewayClients(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"clients": g.clients.GetConnectedClients(),
	}, nil
}
