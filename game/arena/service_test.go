package arena_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/game/matchmaking"
	"github.com/studymon/server/model"
	"github.com/studymon/server/testutil"
	"gorm.io/gorm"
)

// maxRand always rolls the top of the variance range and picks the first
// candidate.
type maxRand struct{}

func (maxRand) Intn(int) int     { return 0 }
func (maxRand) Float64() float64 { return 1 }

type fixture struct {
	db     *gorm.DB
	pubsub cache.PubSub
	svc    *arena.Service
	alice  *model.User
	bob    *model.User
}

// newFixture seeds two users, a fast normal-type species (1) with 100 HP and
// a slow fire-type species (2) whose HP is given.
func newFixture(t *testing.T, defenderHP int, idle time.Duration) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	testutil.SeedTypeChart(t, db)
	moves := testutil.SeedStandardMoves(t, db)

	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(1, battle.TypeNormal, 100, 50, 90))
	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(2, battle.TypeFire, defenderHP, 50, 30))
	testutil.SeedLearnset(t, db, 1, moves...)
	testutil.SeedLearnset(t, db, 2, moves...)

	chart, err := catalog.LoadTypeChart(context.Background(), db)
	require.NoError(t, err)

	svc := arena.NewService(arena.Config{
		DB:          db,
		Guard:       matchmaking.NewGuard(c, time.Minute, nil),
		Calculator:  battle.NewCalculator(chart, battle.DefaultDamageConfig()),
		PubSub:      ps,
		RNG:         maxRand{},
		IdleTimeout: idle,
	})
	return &fixture{
		db:     db,
		pubsub: ps,
		svc:    svc,
		alice:  testutil.SeedUser(t, db, "alice@example.com"),
		bob:    testutil.SeedUser(t, db, "bob@example.com"),
	}
}

func (f *fixture) pair(t *testing.T) (*model.Creature, *model.Creature) {
	t.Helper()
	return testutil.SeedCreature(t, f.db, f.alice.ID, 1), testutil.SeedCreature(t, f.db, f.bob.ID, 2)
}

func codeOf(err error) battle.Code { return battle.CodeOf(err) }

func nextEvent(t *testing.T, ch <-chan *cache.Message) map[string]json.RawMessage {
	t.Helper()
	select {
	case msg := <-ch:
		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func eventType(t *testing.T, env map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(env["type"], &typ))
	return typ
}

func TestCreate(t *testing.T) {
	f := newFixture(t, 80, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	events, cancel, err := f.pubsub.Subscribe(ctx, battle.Channel(1))
	require.NoError(t, err)
	defer cancel()

	res, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.BattleID)
	assert.Equal(t, 100, res.CreatureAHP)
	assert.Equal(t, 80, res.CreatureBHP)
	assert.Equal(t, a.ID, res.FirstTurnCreatureID, "faster creature moves first")
	require.Len(t, res.CreatureAMoves, battle.KitSize)
	require.Len(t, res.CreatureBMoves, battle.KitSize)

	seen := map[int64]bool{}
	for i, mv := range res.CreatureAMoves {
		assert.Equal(t, i+1, mv.Slot)
		assert.Equal(t, mv.PP, mv.CurrentPP)
		assert.False(t, seen[mv.MoveID], "duplicate move %d", mv.MoveID)
		seen[mv.MoveID] = true
	}
	assert.True(t, seen[1], "strong move is always picked")
	assert.True(t, seen[2], "weak move is always picked")

	var reservations, kitRows int64
	require.NoError(t, f.db.Model(&model.BattleReservation{}).Count(&reservations).Error)
	require.NoError(t, f.db.Model(&model.BattleMove{}).Count(&kitRows).Error)
	assert.Equal(t, int64(2), reservations)
	assert.Equal(t, int64(2*battle.KitSize), kitRows)

	env := nextEvent(t, events)
	assert.Equal(t, "battle_created", eventType(t, env))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 80, 0)
	a, _ := f.pair(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, a.ID, a.ID)
	assert.Equal(t, battle.CodeInvalidArgument, codeOf(err))

	_, err = f.svc.Create(ctx, a.ID, 0)
	assert.Equal(t, battle.CodeInvalidArgument, codeOf(err))

	_, err = f.svc.Create(ctx, a.ID, 999)
	assert.Equal(t, battle.CodeNotFound, codeOf(err))

	testutil.SeedSpecies(t, f.db, testutil.SimpleSpecies(3, battle.TypeGhost, 50, 50, 50))
	testutil.SeedLearnset(t, f.db, 3, 90, 91)
	mute := testutil.SeedCreature(t, f.db, f.bob.ID, 3)
	_, err = f.svc.Create(ctx, a.ID, mute.ID)
	assert.Equal(t, battle.CodeNoEligibleMoves, codeOf(err))

	var n int64
	require.NoError(t, f.db.Model(&model.Battle{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateAlreadyInBattle(t *testing.T) {
	f := newFixture(t, 80, 0)
	a, b := f.pair(t)
	c := testutil.SeedCreature(t, f.db, f.bob.ID, 2)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, c.ID, a.ID)
	assert.True(t, errors.Is(err, battle.ErrAlreadyInBattle))
}

func TestCreateConcurrent(t *testing.T) {
	f := newFixture(t, 80, 0)
	a, b := f.pair(t)
	c := testutil.SeedCreature(t, f.db, f.bob.ID, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, opponent := range []int64{b.ID, c.ID} {
		wg.Add(1)
		go func(i int, opponent int64) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, a.ID, opponent)
		}(i, opponent)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, battle.CodeAlreadyInBattle, codeOf(err))
	}
	assert.Equal(t, 1, ok)

	var n int64
	require.NoError(t, f.db.Model(&model.Battle{}).Where("status = ?", model.BattleOngoing).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestAttack(t *testing.T) {
	f := newFixture(t, 500, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)

	out, err := f.svc.Attack(ctx, arena.AttackRequest{
		BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1,
	})
	require.NoError(t, err)
	assert.Greater(t, out.Damage, 0)
	assert.Equal(t, 1.5, out.STAB, "normal attacker using a normal move")
	assert.Equal(t, 4, out.RemainingPP)
	assert.Equal(t, 500-out.Damage, out.CreatureBHP)
	assert.Equal(t, 100, out.CreatureAHP)
	assert.Equal(t, model.BattleOngoing, out.Status)
	assert.Nil(t, out.Reward)

	moves, err := f.svc.Moves(ctx, created.BattleID, a.ID)
	require.NoError(t, err)
	for _, mv := range moves {
		if mv.MoveID == 1 {
			assert.Equal(t, 4, mv.CurrentPP)
			assert.Equal(t, 5, mv.PP)
		}
	}

	view, err := f.svc.Get(ctx, created.BattleID)
	require.NoError(t, err)
	assert.Equal(t, out.CreatureBHP, view.CreatureBHP)

	var row model.Battle
	require.NoError(t, f.db.First(&row, created.BattleID).Error)
	assert.Equal(t, 1, row.Version)
}

func TestAttackErrors(t *testing.T) {
	f := newFixture(t, 500, 0)
	a, b := f.pair(t)
	stranger := testutil.SeedCreature(t, f.db, f.bob.ID, 2)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	id := created.BattleID

	cases := []struct {
		name string
		req  arena.AttackRequest
		want battle.Code
	}{
		{"missing battle", arena.AttackRequest{BattleID: 99, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1}, battle.CodeNotFound},
		{"stranger attacker", arena.AttackRequest{BattleID: id, AttackerID: stranger.ID, DefenderID: b.ID, MoveID: 1}, battle.CodeNotAParticipant},
		{"stranger defender", arena.AttackRequest{BattleID: id, AttackerID: a.ID, DefenderID: stranger.ID, MoveID: 1}, battle.CodeNotAParticipant},
		{"self attack", arena.AttackRequest{BattleID: id, AttackerID: a.ID, DefenderID: a.ID, MoveID: 1}, battle.CodeInvalidArgument},
		{"unassigned move", arena.AttackRequest{BattleID: id, AttackerID: a.ID, DefenderID: b.ID, MoveID: 91}, battle.CodeMoveNotAssigned},
		{"zero ids", arena.AttackRequest{}, battle.CodeInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Attack(ctx, tc.req)
			assert.Equal(t, tc.want, codeOf(err))
		})
	}

	_, err = f.svc.Moves(ctx, id, stranger.ID)
	assert.Equal(t, battle.CodeNotAParticipant, codeOf(err))
	_, err = f.svc.Moves(ctx, 99, a.ID)
	assert.Equal(t, battle.CodeNotFound, codeOf(err))

	var row model.Battle
	require.NoError(t, f.db.First(&row, id).Error)
	assert.Zero(t, row.Version, "failed attacks change nothing")
}

func TestAttackPPExhausted(t *testing.T) {
	f := newFixture(t, 500, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	req := arena.AttackRequest{BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1}

	for i := 0; i < 5; i++ {
		out, err := f.svc.Attack(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 4-i, out.RemainingPP)
		if out.Status != model.BattleOngoing {
			t.Fatalf("battle ended after %d attacks", i+1)
		}
	}
	_, err = f.svc.Attack(ctx, req)
	assert.True(t, errors.Is(err, battle.ErrMovePPExhausted))
}

func TestAttackKnockout(t *testing.T) {
	f := newFixture(t, 30, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)

	events, cancel, err := f.pubsub.Subscribe(ctx, battle.Channel(created.BattleID))
	require.NoError(t, err)
	defer cancel()

	req := arena.AttackRequest{BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1}
	out, err := f.svc.Attack(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.BattleFinished, out.Status)
	assert.Zero(t, out.CreatureBHP)
	require.NotNil(t, out.WinnerCreatureID)
	assert.Equal(t, a.ID, *out.WinnerCreatureID)
	assert.Equal(t, f.alice.ID, *out.WinnerUserID)
	require.NotNil(t, out.Reward)
	assert.True(t, out.Reward.Applied)
	assert.Equal(t, 1, out.Reward.UserExp)

	assert.Equal(t, "attack_resolved", eventType(t, nextEvent(t, events)))
	assert.Equal(t, "battle_finished", eventType(t, nextEvent(t, events)))

	_, err = f.svc.Attack(ctx, req)
	assert.True(t, errors.Is(err, battle.ErrBattleNotOngoing))

	var reservations int64
	require.NoError(t, f.db.Model(&model.BattleReservation{}).Count(&reservations).Error)
	assert.Zero(t, reservations)

	var winner model.Creature
	require.NoError(t, f.db.First(&winner, a.ID).Error)
	assert.Equal(t, 5, winner.Exp)

	// Finished battles still expose their kits, and the creatures are free again.
	moves, err := f.svc.Moves(ctx, created.BattleID, b.ID)
	require.NoError(t, err)
	assert.Len(t, moves, battle.KitSize)
	_, err = f.svc.Create(ctx, a.ID, b.ID)
	assert.NoError(t, err)
}

func TestAttackConcurrentKnockout(t *testing.T) {
	f := newFixture(t, 30, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	req := arena.AttackRequest{BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1}

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Attack(ctx, req)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, battle.CodeBattleNotOngoing, codeOf(err))
	}
	assert.Equal(t, 1, ok)

	var ledger int64
	require.NoError(t, f.db.Model(&model.VictoryLedger{}).Count(&ledger).Error)
	assert.Equal(t, int64(1), ledger)

	var user model.User
	require.NoError(t, f.db.First(&user, f.alice.ID).Error)
	assert.Equal(t, 1, user.Exp)
}

func TestDrowsinessReducesDamage(t *testing.T) {
	f := newFixture(t, 500, 0)
	a, b := f.pair(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	req := arena.AttackRequest{BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1}

	fresh, err := f.svc.Attack(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(f.alice).Update("drowsiness_count", 2).Error)
	tired, err := f.svc.Attack(ctx, req)
	require.NoError(t, err)
	assert.Less(t, tired.Damage, fresh.Damage)
}

func TestSweepIdle(t *testing.T) {
	f := newFixture(t, 80, time.Minute)
	a, b := f.pair(t)
	c := testutil.SeedCreature(t, f.db, f.alice.ID, 1)
	d := testutil.SeedCreature(t, f.db, f.bob.ID, 2)
	ctx := context.Background()

	stale, err := f.svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	fresh, err := f.svc.Create(ctx, c.ID, d.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.Battle{}).Where("id = ?", stale.BattleID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	events, cancel, err := f.pubsub.Subscribe(ctx, battle.Channel(stale.BattleID))
	require.NoError(t, err)
	defer cancel()

	n, err := f.svc.SweepIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "battle_finished", eventType(t, nextEvent(t, events)))

	view, err := f.svc.Get(ctx, stale.BattleID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleFinished, view.Status)
	assert.Nil(t, view.WinnerCreatureID)
	assert.NotNil(t, view.FinishedAt)

	view, err = f.svc.Get(ctx, fresh.BattleID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleOngoing, view.Status)

	var ledger int64
	require.NoError(t, f.db.Model(&model.VictoryLedger{}).Count(&ledger).Error)
	assert.Zero(t, ledger)

	// a and b are free again
	_, err = f.svc.Create(ctx, a.ID, b.ID)
	assert.NoError(t, err)

	n, err = f.svc.SweepIdle(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepIdleDisabled(t *testing.T) {
	f := newFixture(t, 80, 0)
	n, err := f.svc.SweepIdle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequireRoster(t *testing.T) {
	f := newFixture(t, 500, 0)
	c, _ := testutil.SetupTestCache(t)
	svc := arena.NewService(arena.Config{
		DB:            f.db,
		Guard:         matchmaking.NewGuard(c, time.Minute, nil),
		RNG:           maxRand{},
		RequireRoster: true,
	})
	ctx := context.Background()

	a, b := f.pair(t)
	benched := testutil.SeedCreature(t, f.db, f.bob.ID, 2)
	require.NoError(t, f.db.Model(benched).Update("roster_slot", 0).Error)

	_, err := svc.Create(ctx, a.ID, benched.ID)
	assert.Equal(t, battle.CodeInvalidArgument, codeOf(err))

	// Without the option any owned creature may battle.
	spare := testutil.SeedCreature(t, f.db, f.alice.ID, 1)
	_, err = f.svc.Create(ctx, spare.ID, benched.ID)
	require.NoError(t, err)

	created, err := svc.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// Leaving the roster mid-battle blocks further attacks.
	require.NoError(t, f.db.Model(b).Update("roster_slot", 0).Error)
	_, err = svc.Attack(ctx, arena.AttackRequest{
		BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1,
	})
	assert.Equal(t, battle.CodeInvalidArgument, codeOf(err))

	require.NoError(t, f.db.Model(b).Update("roster_slot", model.RosterSize).Error)
	_, err = svc.Attack(ctx, arena.AttackRequest{
		BattleID: created.BattleID, AttackerID: a.ID, DefenderID: b.ID, MoveID: 1,
	})
	assert.NoError(t, err)
}
