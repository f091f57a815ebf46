package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelock/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenStore отказывает в любой операции
type brokenStore struct{}

var errBroken = errors.New("quota exceeded")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Put(context.Context, string, []byte) error   { return errBroken }
func (brokenStore) Delete(context.Context, string) error        { return errBroken }

func (brokenStore) PutBatch(context.Context, map[string][]byte) error { return errBroken }
func (brokenStore) Clear(context.Context) error                 { return errBroken }
func (brokenStore) Close() error                                { return nil }

func newSQLite(t *testing.T) *SQLite {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "client.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newSQLite(t),
		"memory": NewMemory(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, KeyToken)
			assert.ErrorIs(t, err, ErrMissing)

			require.NoError(t, s.Put(ctx, KeyToken, []byte(`"abc"`)))
			require.NoError(t, s.Put(ctx, KeyToken, []byte(`"def"`)))

			got, err := s.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, `"def"`, string(got))

			require.NoError(t, s.Delete(ctx, KeyToken))
			_, err = s.Get(ctx, KeyToken)
			assert.ErrorIs(t, err, ErrMissing)

			require.NoError(t, s.Put(ctx, KeyUser, []byte(`{}`)))
			require.NoError(t, s.Put(ctx, KeyTrades, []byte(`[]`)))
			require.NoError(t, s.Clear(ctx))

			_, err = s.Get(ctx, KeyUser)
			assert.ErrorIs(t, err, ErrMissing)
		})
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	def := []models.Trade{{ID: 42}}

	t.Run("missing", func(t *testing.T) {
		got := Load(ctx, NewMemory(), KeyTrades, def, logger)
		assert.Equal(t, def, got)
	})

	t.Run("corrupted", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Put(ctx, KeyTrades, []byte(`{not json`)))

		got := Load(ctx, s, KeyTrades, def, logger)
		assert.Equal(t, def, got)
	})

	t.Run("wrong shape", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Put(ctx, KeyTrades, []byte(`{"id": 1}`)))

		got := Load(ctx, s, KeyTrades, def, logger)
		assert.Equal(t, def, got)
	})

	t.Run("null", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Put(ctx, KeyTrades, []byte(`null`)))

		got := Load(ctx, s, KeyTrades, def, logger)
		assert.Equal(t, def, got)
	})

	t.Run("null struct", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Put(ctx, KeySettings, []byte(` null `)))

		got := Load(ctx, s, KeySettings, models.DefaultSettings(), logger)
		assert.Equal(t, models.DefaultSettings(), got)
	})

	t.Run("broken backend", func(t *testing.T) {
		got := Load(ctx, brokenStore{}, KeyTrades, def, logger)
		assert.Equal(t, def, got)
	})
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		Save(ctx, brokenStore{}, KeyUser, models.User{ID: 1}, testLogger())
		Remove(ctx, brokenStore{}, KeyUser, testLogger())
		ClearAll(ctx, brokenStore{}, testLogger())
	})

	err := trySave(ctx, brokenStore{}, KeyUser, models.User{ID: 1})
	assert.ErrorIs(t, err, errBroken)
}

func TestSaveLoadTyped(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	logger := testLogger()

	user := models.User{ID: 7, TelegramID: 700, Username: "seller", Balance: 500000, Settings: models.DefaultSettings()}
	Save(ctx, s, KeyUser, user, logger)

	got := Load[*models.User](ctx, s, KeyUser, nil, logger)
	require.NotNil(t, got)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, user.Balance, got.Balance)
	assert.Equal(t, models.ThemeAuto, got.Settings.Theme)
}

func TestRecordsMutate(t *testing.T) {
	ctx := context.Background()
	r := NewRecords(NewMemory(), testLogger())

	err := r.Mutate(ctx, func(st *State) error {
		st.UpsertTrade(models.Trade{ID: 1, Status: models.TradeActive})
		st.UpsertTrade(models.Trade{ID: 2, Status: models.TradeActive})
		return nil
	})
	require.NoError(t, err)

	err = r.Mutate(ctx, func(st *State) error {
		st.Trade(1).Status = models.TradeCancelled
		st.TouchTrades()
		return errors.New("rejected")
	})
	require.Error(t, err)

	snap := r.Snapshot(ctx)
	require.Len(t, snap.Trades, 2)
	assert.Equal(t, models.TradeActive, snap.Trades[0].Status)

	// снимок независим от хранилища
	snap.Trades[0].Status = models.TradeCompleted
	assert.Equal(t, models.TradeActive, r.Snapshot(ctx).Trades[0].Status)
}

func TestRecordsSeedOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	r := NewRecords(NewMemory(), testLogger())

	assert.True(t, r.Seed(ctx, models.User{ID: 1, Balance: 500000}))

	r.SaveUser(ctx, models.User{ID: 1, Balance: 100})
	assert.False(t, r.Seed(ctx, models.User{ID: 1, Balance: 500000}))

	u, ok := r.User(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 100, u.Balance)

	r.SetToken(ctx, "offline_mock_token")
	assert.Equal(t, "offline_mock_token", r.Token(ctx))

	r.ClearSession(ctx)
	assert.Empty(t, r.Token(ctx))
	_, ok = r.User(ctx)
	assert.False(t, ok)
}

func TestPutBatch(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, KeyUser, []byte(`{"id":1}`)))

			err := s.PutBatch(ctx, map[string][]byte{
				KeyUser:     []byte(`{"id":2}`),
				KeyPayments: []byte(`[]`),
			})
			require.NoError(t, err)

			got, err := s.Get(ctx, KeyUser)
			require.NoError(t, err)
			assert.Equal(t, `{"id":2}`, string(got))

			got, err = s.Get(ctx, KeyPayments)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))
		})
	}
}

// rejectKey заставляет sqlite отклонять вставку ключа, имитируя сбой посреди записи
func rejectKey(t *testing.T, s *SQLite, key string) {
	t.Helper()

	_, err := s.db.Exec(`
CREATE TRIGGER reject_key BEFORE INSERT ON kv
WHEN NEW.key = '` + key + `'
BEGIN
    SELECT RAISE(ABORT, 'disk I/O error');
END;
`)
	require.NoError(t, err)
}

func TestSQLitePutBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	require.NoError(t, s.Put(ctx, KeyUser, []byte(`{"id":1,"balance":100}`)))
	rejectKey(t, s, KeyPayments)

	err := s.PutBatch(ctx, map[string][]byte{
		KeyUser:     []byte(`{"id":1,"balance":200}`),
		KeyPayments: []byte(`[]`),
	})
	require.Error(t, err)

	got, err := s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"balance":100}`, string(got))

	_, err = s.Get(ctx, KeyPayments)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestRecordsMutateWritesAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	r := NewRecords(s, testLogger())

	r.SaveUser(ctx, models.User{ID: 1, Balance: 500000})
	rejectKey(t, s, KeyPayments)

	err := r.Mutate(ctx, func(st *State) error {
		st.User.Balance += 10000
		st.TouchUser()
		st.UpsertPayment(models.Payment{ID: "p1", UserID: 1, Amount: 10000, Status: models.PaymentCompleted})
		return nil
	})
	require.NoError(t, err, "write failures are logged, not returned")

	snap := r.Snapshot(ctx)
	require.NotNil(t, snap.User)
	assert.EqualValues(t, 500000, snap.User.Balance, "balance not saved without its payment")
	assert.Empty(t, snap.Payments)
}

func TestRecordsMirrorUserKeepsPendingChanges(t *testing.T) {
	ctx := context.Background()
	r := NewRecords(NewMemory(), testLogger())

	assert.True(t, r.MirrorUser(ctx, models.User{ID: 1, Balance: 100}))

	r.SaveUser(ctx, models.User{ID: 1, Balance: 200, PendingSync: true})
	assert.False(t, r.MirrorUser(ctx, models.User{ID: 1, Balance: 777}))

	u, ok := r.User(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 200, u.Balance)
	assert.True(t, u.PendingSync)
}
