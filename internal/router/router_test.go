package router

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/kalambet/buddy/internal/llm"
)

type fakeBackend struct {
	id    llm.ID
	reply string
	err   error

	mu    sync.Mutex
	calls int
	mood  string
	reset bool
}

func (f *fakeBackend) ID() llm.ID          { return f.id }
func (f *fakeBackend) Model() string       { return "fake-" + string(f.id) }
func (f *fakeBackend) History() []llm.Turn { return nil }

func (f *fakeBackend) Chat(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", &llm.BackendError{Backend: f.id, Kind: llm.KindNetwork, Err: f.err}
	}
	return f.reply, nil
}

func (f *fakeBackend) SetMoodContext(d string) {
	f.mu.Lock()
	f.mood = d
	f.mu.Unlock()
}

func (f *fakeBackend) Reset() {
	f.mu.Lock()
	f.reset = true
	f.mu.Unlock()
}

type staticProber bool

func (p staticProber) Online(context.Context) bool { return bool(p) }

type memStore struct{ saved []string }

func (m *memStore) SaveMode(mode string) error {
	m.saved = append(m.saved, mode)
	return nil
}

type failingStore struct{}

func (failingStore) SaveMode(string) error { return errors.New("read-only") }

var errDown = errors.New("down")

func backends() (local, groq, gemini *fakeBackend) {
	return &fakeBackend{id: llm.IDLocal, reply: "from local"},
		&fakeBackend{id: llm.IDGroq, reply: "from groq"},
		&fakeBackend{id: llm.IDGemini, reply: "from gemini"}
}

func newRouter(local, groq, gemini *fakeBackend, opts Options) *Router {
	var clouds []llm.Backend
	if groq != nil {
		clouds = append(clouds, groq)
	}
	if gemini != nil {
		clouds = append(clouds, gemini)
	}
	if opts.CloudPriority == nil {
		opts.CloudPriority = []llm.ID{llm.IDGroq, llm.IDGemini}
	}
	return New(NewSelector(local, clouds, opts))
}

func ids(bs []llm.Backend) []llm.ID {
	var out []llm.ID
	for _, b := range bs {
		out = append(out, b.ID())
	}
	return out
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"auto", "LOCAL", " groq ", "Gemini"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) error: %v", s, err)
		}
	}
	if _, err := ParseMode("openai"); err == nil {
		t.Error("ParseMode(openai) succeeded")
	}
}

func TestSelect_Auto(t *testing.T) {
	tests := []struct {
		name         string
		online       bool
		preferOnline bool
		priority     []llm.ID
		want         llm.ID
	}{
		{"online and preferred", true, true, nil, llm.IDGroq},
		{"offline", false, true, nil, llm.IDLocal},
		{"online but not preferred", true, false, nil, llm.IDLocal},
		{"custom priority", true, true, []llm.ID{llm.IDGemini, llm.IDGroq}, llm.IDGemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, groq, gemini := backends()
			r := newRouter(local, groq, gemini, Options{
				Mode:          ModeAuto,
				CloudPriority: tt.priority,
				PreferOnline:  tt.preferOnline,
				Prober:        staticProber(tt.online),
			})
			if got := r.Select(context.Background()).ID(); got != tt.want {
				t.Errorf("Select() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelect_AutoWithoutCloudBackends(t *testing.T) {
	local, _, _ := backends()
	r := newRouter(local, nil, nil, Options{Mode: ModeAuto, PreferOnline: true, Prober: staticProber(true)})
	if got := r.Select(context.Background()).ID(); got != llm.IDLocal {
		t.Errorf("Select() = %s, want local", got)
	}
}

func TestSelect_ExplicitModes(t *testing.T) {
	local, groq, _ := backends()
	r := newRouter(local, groq, nil, Options{Mode: ModeGroq, Prober: staticProber(false)})
	if got := r.Select(context.Background()).ID(); got != llm.IDGroq {
		t.Errorf("Select() in groq mode = %s", got)
	}

	// Gemini is not configured.
	if err := r.SetMode(ModeGemini); err != nil {
		t.Fatal(err)
	}
	if got := r.Select(context.Background()).ID(); got != llm.IDLocal {
		t.Errorf("Select() with unconfigured gemini = %s, want local", got)
	}

	if err := r.SetMode(ModeLocal); err != nil {
		t.Fatal(err)
	}
	if got := r.Select(context.Background()).ID(); got != llm.IDLocal {
		t.Errorf("Select() in local mode = %s", got)
	}
}

func TestNewSelector_InvalidModeFallsBackToAuto(t *testing.T) {
	local, _, _ := backends()
	r := newRouter(local, nil, nil, Options{Mode: "turbo"})
	if r.Mode() != ModeAuto {
		t.Errorf("Mode() = %s, want auto", r.Mode())
	}
}

func TestSetMode_Persists(t *testing.T) {
	local, groq, gemini := backends()
	store := &memStore{}
	r := newRouter(local, groq, gemini, Options{Mode: ModeAuto, Store: store})

	if err := r.SetMode("Gemini"); err != nil {
		t.Fatal(err)
	}
	if r.Mode() != ModeGemini {
		t.Errorf("Mode() = %s, want gemini", r.Mode())
	}
	if !reflect.DeepEqual(store.saved, []string{"gemini"}) {
		t.Errorf("saved = %v", store.saved)
	}

	if err := r.SetMode("bogus"); err == nil {
		t.Error("SetMode(bogus) succeeded")
	}
	if r.Mode() != ModeGemini || len(store.saved) != 1 {
		t.Errorf("invalid switch changed state: mode %s, saved %v", r.Mode(), store.saved)
	}
}

func TestSetMode_PersistFailureKeepsSwitch(t *testing.T) {
	local, _, _ := backends()
	r := newRouter(local, nil, nil, Options{Mode: ModeAuto, Store: failingStore{}})
	if err := r.SetMode(ModeLocal); err == nil {
		t.Error("SetMode did not report the persistence failure")
	}
	if r.Mode() != ModeLocal {
		t.Errorf("Mode() = %s, want local", r.Mode())
	}
}

func TestCandidates_Asymmetry(t *testing.T) {
	local, groq, gemini := backends()
	r := newRouter(local, groq, gemini, Options{AutoFallback: true})

	if got := ids(r.Candidates(llm.IDLocal)); !reflect.DeepEqual(got, []llm.ID{llm.IDGroq, llm.IDGemini}) {
		t.Errorf("Candidates(local) = %v, want [groq gemini]", got)
	}
	if got := ids(r.Candidates(llm.IDGroq)); !reflect.DeepEqual(got, []llm.ID{llm.IDLocal}) {
		t.Errorf("Candidates(groq) = %v, want [local]", got)
	}
	if got := ids(r.Candidates(llm.IDGemini)); !reflect.DeepEqual(got, []llm.ID{llm.IDLocal}) {
		t.Errorf("Candidates(gemini) = %v, want [local]", got)
	}
}

func TestCandidates_FallbackDisabled(t *testing.T) {
	local, groq, gemini := backends()
	r := newRouter(local, groq, gemini, Options{AutoFallback: false})
	if got := r.Candidates(llm.IDLocal); len(got) != 0 {
		t.Errorf("Candidates(local) = %v, want none", ids(got))
	}
}

func TestChat_LocalFailureTriesCloudInOrder(t *testing.T) {
	local, groq, gemini := backends()
	local.err = errDown
	groq.err = errDown
	r := newRouter(local, groq, gemini, Options{Mode: ModeLocal, AutoFallback: true})

	reply := r.Chat(context.Background(), "hi")

	if reply.Backend != llm.IDGemini || reply.Text != "from gemini" {
		t.Errorf("reply = %+v, want gemini", reply)
	}
	if local.calls != 1 || groq.calls != 1 || gemini.calls != 1 {
		t.Errorf("calls local=%d groq=%d gemini=%d, want 1 each", local.calls, groq.calls, gemini.calls)
	}
	if len(reply.Failed) != 2 || reply.Failed[0].Backend != llm.IDLocal || reply.Failed[1].Backend != llm.IDGroq {
		t.Errorf("Failed = %+v", reply.Failed)
	}
	if r.Last() != llm.IDGemini {
		t.Errorf("Last() = %s, want gemini", r.Last())
	}
}

func TestChat_CloudFailureTriesLocalOnly(t *testing.T) {
	local, groq, gemini := backends()
	groq.err = errDown
	r := newRouter(local, groq, gemini, Options{Mode: ModeGroq, AutoFallback: true})

	reply := r.Chat(context.Background(), "hi")

	if reply.Backend != llm.IDLocal {
		t.Errorf("Backend = %s, want local", reply.Backend)
	}
	if gemini.calls != 0 {
		t.Errorf("gemini called %d times after a cloud failure", gemini.calls)
	}
}

func TestChat_ExhaustionReturnsApology(t *testing.T) {
	local, groq, gemini := backends()
	local.err, groq.err, gemini.err = errDown, errDown, errDown
	r := newRouter(local, groq, gemini, Options{Mode: ModeGemini, AutoFallback: true})

	reply := r.Chat(context.Background(), "hi")

	if reply.Text != Apology || reply.Backend != llm.IDError {
		t.Errorf("reply = %+v, want apology from error", reply)
	}
	// gemini then local; groq is never tried after a cloud failure.
	if groq.calls != 0 || gemini.calls != 1 || local.calls != 1 {
		t.Errorf("calls local=%d groq=%d gemini=%d", local.calls, groq.calls, gemini.calls)
	}
	var be *llm.BackendError
	if !errors.As(reply.Failed[0].Err, &be) || be.Backend != llm.IDGemini {
		t.Errorf("Failed[0].Err = %v", reply.Failed[0].Err)
	}
}

func TestChat_NoFallbackWhenDisabled(t *testing.T) {
	local, groq, _ := backends()
	local.err = errDown
	r := newRouter(local, groq, nil, Options{Mode: ModeLocal, AutoFallback: false})

	reply := r.Chat(context.Background(), "hi")
	if reply.Backend != llm.IDError || groq.calls != 0 {
		t.Errorf("reply = %+v, groq calls = %d", reply, groq.calls)
	}
}

func TestSetMoodContextAndReset_Broadcast(t *testing.T) {
	local, groq, gemini := backends()
	r := newRouter(local, groq, gemini, Options{})

	r.SetMoodContext("be gentle")
	r.Reset()
	for _, b := range []*fakeBackend{local, groq, gemini} {
		if b.mood != "be gentle" || !b.reset {
			t.Errorf("%s: mood %q reset %v", b.id, b.mood, b.reset)
		}
	}
}
