package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/llm"
	"ngmigrate/internal/models"
	"ngmigrate/internal/prompts"
)

// Key returns the cache key for a version pair.
func Key(fromVersion, toVersion int) string {
	return fmt.Sprintf("a%d-to-a%d", fromVersion, toVersion)
}

// Provider returns rule sets, asking the model only on a cache miss.
type Provider struct {
	cache   Cache
	client  llm.Client
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProvider creates a provider. timeout bounds each model call.
func NewProvider(cache Cache, client llm.Client, timeout time.Duration) *Provider {
	return &Provider{
		cache:   cache,
		client:  client,
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (p *Provider) keyLock(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// GetRules returns the rules for migrating fromVersion to toVersion.
// Only a reply that validates as a rule set is written to the cache.
func (p *Provider) GetRules(ctx context.Context, fromVersion, toVersion int, forceRefresh bool) (models.RuleSet, error) {
	const op = "get rules"

	if fromVersion < 0 || toVersion < 0 {
		return nil, apperr.Newf(apperr.InvalidInput, op, "versions must be non-negative, got %d and %d", fromVersion, toVersion)
	}
	key := Key(fromVersion, toVersion)

	l := p.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if !forceRefresh {
		set, ok, err := p.cached(ctx, key)
		if err != nil || ok {
			return set, err
		}
	}

	if p.client == nil {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, op, "no model backend configured")
	}

	logrus.WithField("key", key).Info("Fetching migration rules from model")
	callCtx, cancel := llm.WithTimeout(ctx, p.timeout)
	defer cancel()

	reply, err := p.client.Complete(callCtx, prompts.RulesSystem, prompts.MigrationRules(fromVersion, toVersion))
	if err != nil {
		return nil, err
	}

	set, err := parseReply(reply)
	if err != nil {
		return nil, apperr.New(apperr.InvalidUpstreamResponse, op, err).WithDetails(reply)
	}

	body, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	if err := p.cache.Put(ctx, key, body); err != nil {
		return nil, apperr.New(apperr.FileSystemError, "write rule cache", err).WithPath(key)
	}

	logrus.WithField("key", key).Infof("Received %d rules", len(set))
	return set, nil
}

func (p *Provider) cached(ctx context.Context, key string) (models.RuleSet, bool, error) {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil, false, apperr.New(apperr.FileSystemError, "read rule cache", err).WithPath(key)
	}
	if !ok {
		return nil, false, nil
	}
	set, err := ParseRuleSet(data)
	if err != nil {
		return nil, false, apperr.New(apperr.CacheCorrupt, "read rule cache", err).WithPath(key)
	}
	logrus.WithField("key", key).Debug("Using cached rules")
	return set, true, nil
}

func parseReply(reply string) (models.RuleSet, error) {
	candidate, ok := llm.ExtractJSON(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON value in model reply")
	}
	raw := []byte(candidate)
	if !json.Valid(raw) {
		raw = jsonc.ToJSON(raw)
	}
	return ParseRuleSet(raw)
}
