package stalker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"arb-stalker/internal/features/stalker"
	"arb-stalker/internal/infra/store"
	"arb-stalker/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type historyCall struct {
	Address string
	From    uint64
	To      uint64
}

type fakeExplorer struct {
	mu         sync.Mutex
	height     uint64
	heightErr  error
	history    map[string][]model.Transaction
	historyErr map[string]error
	calls      []historyCall

	// when set, BlockNumber signals entered and waits for release
	entered chan struct{}
	release chan struct{}
	// runs inside History before it returns
	onHistory func(address string)
}

func newFakeExplorer(height uint64) *fakeExplorer {
	return &fakeExplorer{
		height:     height,
		history:    make(map[string][]model.Transaction),
		historyErr: make(map[string]error),
	}
}

func (f *fakeExplorer) BlockNumber(ctx context.Context) (uint64, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, f.heightErr
}

func (f *fakeExplorer) History(ctx context.Context, address string, fromBlock, toBlock uint64) ([]model.Transaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, historyCall{Address: address, From: fromBlock, To: toBlock})
	var txs []model.Transaction
	for _, tx := range f.history[address] {
		if tx.BlockNumber == 0 || (tx.BlockNumber > fromBlock && tx.BlockNumber <= toBlock) {
			txs = append(txs, tx)
		}
	}
	err := f.historyErr[address]
	hook := f.onHistory
	f.mu.Unlock()

	if hook != nil {
		hook(address)
	}
	return txs, err
}

func (f *fakeExplorer) historyCalls() []historyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]historyCall(nil), f.calls...)
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	failAll bool
	// when positive, sends fail once this many have gone through
	budget      int
	budgetUsed  int
	unavailable map[int64]bool
}

var errSendFailed = errors.New("telegram: Bad Gateway")

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable[chatID] {
		return fmt.Errorf("failed to send message to %d: %w: Forbidden: bot was blocked by the user", chatID, model.ErrChatUnavailable)
	}
	if f.failAll {
		return errSendFailed
	}
	if f.budget > 0 {
		if f.budgetUsed >= f.budget {
			return errSendFailed
		}
		f.budgetUsed++
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

// allowSends lets n more messages through before failing again.
func (f *fakeMessenger) allowSends(n int) {
	f.mu.Lock()
	f.budget, f.budgetUsed = n, 0
	f.mu.Unlock()
}

func (f *fakeMessenger) setUnavailable(chatID int64) {
	f.mu.Lock()
	if f.unavailable == nil {
		f.unavailable = make(map[int64]bool)
	}
	f.unavailable[chatID] = true
	f.mu.Unlock()
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeMessenger) setFailing(fail bool) {
	f.mu.Lock()
	f.failAll = fail
	f.mu.Unlock()
}

// countingStore counts writes on top of a miniredis backed store.
type countingStore struct {
	*store.RedisStore
	puts atomic.Int32
}

func (c *countingStore) Put(ctx context.Context, s *model.Stalker) error {
	c.puts.Add(1)
	return c.RedisStore.Put(ctx, s)
}

type testEnv struct {
	svc       *stalker.Service
	store     *countingStore
	explorer  *fakeExplorer
	messenger *fakeMessenger
	mr        *miniredis.Miniredis
}

func newTestEnv(t *testing.T, height uint64) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		store:     &countingStore{RedisStore: store.NewRedisStoreFromClient(client)},
		explorer:  newFakeExplorer(height),
		messenger: &fakeMessenger{},
		mr:        mr,
	}
	env.svc = stalker.NewService(env.store, env.explorer, env.messenger, stalker.Options{})
	return env
}

func (e *testEnv) seed(t *testing.T, s *model.Stalker) {
	t.Helper()
	require.NoError(t, e.store.RedisStore.Put(context.Background(), s))
}

func (e *testEnv) record(t *testing.T, chatID int64) *model.Stalker {
	t.Helper()
	s, err := e.store.Get(context.Background(), chatID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) send(t *testing.T, chatID int64, text string) string {
	t.Helper()
	before := len(e.messenger.messages())
	require.NoError(t, e.svc.Handle(context.Background(), chatID, stalker.ParseCommand(text)))
	msgs := e.messenger.messages()
	require.Len(t, msgs, before+1, "expected exactly one reply to %q", text)
	return msgs[len(msgs)-1].Text
}
