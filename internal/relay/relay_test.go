package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/dmbridge/dmbridge/internal/workspace"
)

// fakeAPI is an in-memory workspace platform. Channel creation honors the
// platform's identity-key idempotency guarantee: creating for a handle that
// already has an open channel returns that channel.
type fakeAPI struct {
	mu       sync.Mutex
	channels []workspace.Channel
	nextSID  int

	listCalls    int
	createCalls  int
	webhookCalls int
	postCalls    int

	webhookTargets []string
	posts          []postedMessage

	failList   bool
	failCreate bool
	failPost   bool
	failFetch  bool
}

type postedMessage struct {
	channelSID, from, body string
}

func (f *fakeAPI) ListChannels(context.Context) ([]workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList {
		return nil, errors.New("list unavailable")
	}
	out := make([]workspace.Channel, len(f.channels))
	copy(out, f.channels)
	return out, nil
}

func (f *fakeAPI) FetchChannel(_ context.Context, sid string) (*workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch {
		return nil, errors.New("fetch unavailable")
	}
	for i := range f.channels {
		if f.channels[i].SID == sid {
			ch := f.channels[i]
			return &ch, nil
		}
	}
	return nil, errors.Errorf("channel %s not found", sid)
}

func (f *fakeAPI) CreateChannel(_ context.Context, handle, userID string) (*workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreate {
		return nil, errors.New("create unavailable")
	}
	for i := range f.channels {
		if f.channels[i].OpenFor(handle) {
			ch := f.channels[i]
			return &ch, nil
		}
	}
	f.nextSID++
	ch := workspace.Channel{
		SID:          fmt.Sprintf("CH%03d", f.nextSID),
		FriendlyName: userID,
		Attributes:   fmt.Sprintf(`{"from":"@%s","status":"ACTIVE"}`, handle),
	}
	f.channels = append(f.channels, ch)
	return &ch, nil
}

func (f *fakeAPI) CreateChannelWebhook(_ context.Context, channelSID, targetURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhookCalls++
	f.webhookTargets = append(f.webhookTargets, targetURL)
	return nil
}

func (f *fakeAPI) PostMessage(_ context.Context, channelSID, from, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postCalls++
	if f.failPost {
		return errors.New("post unavailable")
	}
	f.posts = append(f.posts, postedMessage{channelSID, from, body})
	return nil
}

func (f *fakeAPI) deactivateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		ch := &f.channels[i]
		a := ch.Attrs()
		a.Status = workspace.StatusInactive
		ch.Attributes = fmt.Sprintf(`{"from":%q,"status":%q}`, a.From, a.Status)
	}
}

func TestResolveIsIdempotentPerHandle(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, "https://bridge.example")

	first, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.SID != second.SID {
		t.Fatalf("resolved different channels: %s vs %s", first.SID, second.SID)
	}
	if api.webhookCalls != 1 {
		t.Fatalf("expected exactly one webhook registration, got %d", api.webhookCalls)
	}
	if got := api.webhookTargets[0]; got != "https://bridge.example/fromWorkspace" {
		t.Fatalf("webhook target = %q", got)
	}
}

func TestResolveInactiveChannelProvisionsFresh(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, "https://bridge.example")

	first, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	// Agent ends the conversation in the workspace.
	api.deactivateAll()

	second, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.SID == second.SID {
		t.Fatal("INACTIVE channel must not be reused")
	}
	if api.webhookCalls != 2 {
		t.Fatalf("fresh channel needs its own webhook, got %d registrations", api.webhookCalls)
	}
}

func TestResolveConcurrentSameHandleRegistersOnce(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, "https://bridge.example")

	const n = 8
	var wg sync.WaitGroup
	sids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
			if err != nil {
				t.Errorf("resolve %d: %v", i, err)
				return
			}
			sids[i] = ch.SID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if sids[i] != sids[0] {
			t.Fatalf("resolve %d got %s, want %s", i, sids[i], sids[0])
		}
	}
	if api.webhookCalls != 1 {
		t.Fatalf("expected one webhook registration under contention, got %d", api.webhookCalls)
	}
}

func TestResolvePlatformErrorYieldsNoChannel(t *testing.T) {
	api := &fakeAPI{failList: true}
	r := NewResolver(api, "https://bridge.example")
	if _, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"}); err == nil {
		t.Fatal("expected error when the platform is unavailable")
	}
	if api.webhookCalls != 0 {
		t.Fatal("no webhook may be registered on failure")
	}
}

func TestIdentityForChannel(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, "https://bridge.example")
	ch, err := r.Resolve(context.Background(), Identity{Handle: "alice", UserID: "111"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	userID, err := r.IdentityForChannel(context.Background(), ch.SID)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if userID != "111" {
		t.Fatalf("user id = %q", userID)
	}

	if _, err := r.IdentityForChannel(context.Background(), "CHmissing"); err == nil {
		t.Fatal("unknown channel must propagate not-found")
	}
}
