package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

type mockProxySource struct {
	mock.Mock
}

func (m *mockProxySource) Next(ctx context.Context) (domain.Proxy, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Proxy), args.Error(1)
}

type mockSecretStore struct {
	mock.Mock
}

func (m *mockSecretStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockSecretStore) Put(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockSecretStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func openSession(t *testing.T, env *testEnv) *Session {
	t.Helper()

	account := domain.NewAccount("trainer1", "hunter2", domain.AuthServicePTC)
	session, err := env.engine.Open(context.Background(), account)
	require.NoError(t, err)
	return session
}

func TestSessionLoginRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	env.remote.authErrs = []error{domain.ErrAuthFailed, domain.ErrAuthFailed}
	session := openSession(t, env)

	require.NoError(t, session.Login(context.Background()))

	assert.Equal(t, 3, env.remote.authCalls)
	assert.Equal(t, domain.SessionOnboarding, session.State())
	assert.Equal(t, env.clock.Now(), session.Account().StartedAt)
	assert.Contains(t, env.sleeper.Pauses(), 20*time.Second)
}

func TestSessionLoginGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	config := testSessionConfig()
	config.LoginRetries = 2
	env := newTestEnv(config, fixedRandom{})
	env.remote.authErrs = []error{
		fmt.Errorf("bad password: %w", domain.ErrAuthFailed),
		fmt.Errorf("bad password: %w", domain.ErrAuthFailed),
		fmt.Errorf("bad password: %w", domain.ErrAuthFailed),
		nil,
	}
	session := openSession(t, env)

	err := session.Login(context.Background())

	require.ErrorIs(t, err, domain.ErrLoginAttemptsExceeded)
	assert.Equal(t, 3, env.remote.authCalls)
	assert.False(t, session.Account().CaptchaFlagged)
	assert.Equal(t, domain.SessionUnauthenticated, session.State())
}

func TestSessionLoginDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	env.remote.authErrs = []error{errors.New("dial tcp: connection refused")}
	session := openSession(t, env)

	err := session.Login(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLoginAttemptsExceeded)
	assert.Equal(t, 1, env.remote.authCalls)
}

func TestSessionLoginSkipsWhileCredentialsRemainValid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	session := openSession(t, env)
	require.NoError(t, session.Login(context.Background()))

	env.clock.Advance(20 * time.Minute)
	require.NoError(t, session.Login(context.Background()))
	assert.Equal(t, 1, env.remote.authCalls)

	env.clock.Advance(9*time.Minute + 30*time.Second)
	require.NoError(t, session.Login(context.Background()))
	assert.Equal(t, 2, env.remote.authCalls)
}

func TestSessionOpenAssignsProxyAndResolvesPassword(t *testing.T) {
	t.Parallel()

	proxies := &mockProxySource{}
	proxies.On("Next", mock.Anything).Return(domain.Proxy{Label: "0", URL: "http://10.0.0.1:3128"}, nil).Once()
	secrets := &mockSecretStore{}
	secrets.On("Get", mock.Anything, "pass://pogo/trainer1").Return("hunter2", nil).Once()

	env := newTestEnv(testSessionConfig(), fixedRandom{}, WithProxySource(proxies), WithSecretStore(secrets))
	account := domain.NewAccount("trainer1", "", domain.AuthServicePTC)
	account.PasswordRef = "pass://pogo/trainer1"

	_, err := env.engine.Open(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", account.Password)
	assert.Equal(t, "http://10.0.0.1:3128", account.ProxyURL)
	assert.Equal(t, "0", account.ProxyDisplay)

	// Without rotation an assigned proxy is kept.
	_, err = env.engine.Open(context.Background(), account)
	require.NoError(t, err)

	proxies.AssertExpectations(t)
	secrets.AssertExpectations(t)
}

func TestSessionOpenRotatesProxyWhenConfigured(t *testing.T) {
	t.Parallel()

	proxies := &mockProxySource{}
	proxies.On("Next", mock.Anything).Return(domain.Proxy{Label: "1", URL: "http://10.0.0.2:3128"}, nil).Twice()

	config := testSessionConfig()
	config.ProxyRotation = ProxyRotationRoundRobin
	env := newTestEnv(config, fixedRandom{}, WithProxySource(proxies))
	account := domain.NewAccount("trainer1", "hunter2", domain.AuthServicePTC)

	for i := 0; i < 2; i++ {
		_, err := env.engine.Open(context.Background(), account)
		require.NoError(t, err)
	}
	proxies.AssertExpectations(t)
}

func TestCompleteTutorialPerformsOnlyMissingSteps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	session := openSession(t, env)

	state := domain.NewTutorialState(
		domain.TutorialLegalScreen,
		domain.TutorialAvatarSelection,
		domain.TutorialPokemonCapture,
	)
	completed, err := session.CompleteTutorial(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, completed.Complete())
	assert.False(t, state.Has(domain.TutorialNameSelection), "input state must not be mutated")
	assert.Equal(t, []ports.Method{
		ports.MethodClaimCodename,
		ports.MethodMarkTutorialComplete,
		ports.MethodGetPlayer,
		ports.MethodMarkTutorialComplete,
	}, env.remote.primaryMethods())

	marks := env.remote.callsOf(ports.MethodMarkTutorialComplete)
	require.Len(t, marks, 2)
	assert.Equal(t, domain.TutorialNameSelection, marks[0].Params)
	assert.Equal(t, domain.TutorialFirstTimeExperience, marks[1].Params)
}

func TestCompleteTutorialWithCompleteStateMakesNoCalls(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	session := openSession(t, env)

	completed, err := session.CompleteTutorial(context.Background(), domain.NewTutorialState(domain.RequiredTutorialSteps...))
	require.NoError(t, err)

	assert.True(t, completed.Complete())
	assert.Empty(t, env.remote.primaryMethods())
	assert.Empty(t, env.sleeper.Pauses())
}

func TestCompleteTutorialFromScratchSetsStarterAsBuddy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{intN: 1, float64: 0.5})
	env.remote.respond = func(req *ports.Request) (ports.Response, error) {
		resp := successResponse(req)
		if firstMethod(req) == ports.MethodGetPlayer {
			resp[ports.MethodGetInventory] = ports.InventoryPayload{Items: []domain.InventoryItem{
				{Pokemon: &domain.PokemonData{ID: 9001, PokemonID: 4}},
			}}
		}
		return resp, nil
	}
	session := openSession(t, env)

	completed, err := session.CompleteTutorial(context.Background(), domain.NewTutorialState())
	require.NoError(t, err)
	assert.True(t, completed.Complete())

	starter := env.remote.callsOf(ports.MethodEncounterTutorialComplete)
	require.Len(t, starter, 1)
	assert.Equal(t, 4, starter[0].Params)

	buddy := env.remote.callsOf(ports.MethodSetBuddyPokemon)
	require.Len(t, buddy, 1)
	assert.Equal(t, uint64(9001), buddy[0].Params)
	assert.Equal(t, uint64(9001), session.Account().BuddyID)
}

func TestCompleteTutorialResumesAfterInterruption(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	failures := 1
	env.remote.respond = func(req *ports.Request) (ports.Response, error) {
		if firstMethod(req) == ports.MethodClaimCodename && failures > 0 {
			failures--
			return nil, errors.New("connection reset")
		}
		return successResponse(req), nil
	}
	session := openSession(t, env)

	partial, err := session.CompleteTutorial(context.Background(), domain.NewTutorialState(domain.TutorialLegalScreen))
	require.Error(t, err)
	assert.Equal(t, []domain.TutorialStep{0, 1, 3}, partial.Steps())

	before := len(env.remote.primaryMethods())
	completed, err := session.CompleteTutorial(context.Background(), partial)
	require.NoError(t, err)
	assert.True(t, completed.Complete())
	assert.Equal(t, []ports.Method{
		ports.MethodClaimCodename,
		ports.MethodMarkTutorialComplete,
		ports.MethodGetPlayer,
		ports.MethodMarkTutorialComplete,
	}, env.remote.primaryMethods()[before:])
}

func TestPrepareBringsSessionToReady(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	env.remote.respond = func(req *ports.Request) (ports.Response, error) {
		resp := successResponse(req)
		resp[ports.MethodGetPlayer] = ports.PlayerPayload{TutorialState: domain.RequiredTutorialSteps}
		return resp, nil
	}
	session := openSession(t, env)

	require.NoError(t, session.Prepare(context.Background()))
	assert.Equal(t, domain.SessionReady, session.State())
	assert.Equal(t, []ports.Method{ports.MethodGetPlayer}, env.remote.primaryMethods())
}

func TestPrepareSkipsOnboardingCheckWhileCredentialsRemainValid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	env.remote.respond = func(req *ports.Request) (ports.Response, error) {
		resp := successResponse(req)
		resp[ports.MethodGetPlayer] = ports.PlayerPayload{TutorialState: domain.RequiredTutorialSteps}
		return resp, nil
	}
	first := openSession(t, env)
	require.NoError(t, first.Prepare(context.Background()))
	assert.True(t, first.Account().Onboarded)
	first.Close()

	env.clock.Advance(5 * time.Minute)
	second, err := env.engine.Open(context.Background(), first.Account())
	require.NoError(t, err)
	require.NoError(t, second.Prepare(context.Background()))

	assert.Equal(t, domain.SessionReady, second.State())
	assert.Equal(t, 1, env.remote.authCalls)
	assert.Equal(t, []ports.Method{ports.MethodGetPlayer}, env.remote.primaryMethods())
}

func TestExecuteChallengeOverridesResultCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	env.remote.respond = func(req *ports.Request) (ports.Response, error) {
		resp := successResponse(req)
		resp[ports.MethodCheckChallenge] = ports.ChallengePayload{ShowChallenge: true, ChallengeURL: "https://challenge.example"}
		return resp, nil
	}
	session := openSession(t, env)

	result := session.SpinPokestop(context.Background(), domain.Fort{ID: "f1", Type: domain.FortTypePokestop}, domain.Coords{})

	assert.Equal(t, domain.OutcomeChallengeDetected, result.Kind)
	assert.Equal(t, "https://challenge.example", result.ChallengeURL)
	assert.Equal(t, 1, result.Code, "primary result code survives the override")
	assert.True(t, session.Account().CaptchaFlagged)
	assert.Equal(t, domain.SessionQuarantined, session.State())

	quarantined, err := env.registry.Contains(context.Background(), "trainer1")
	require.NoError(t, err)
	assert.True(t, quarantined)

	// Further tasks short-circuit without reaching the remote side.
	calls := len(env.remote.primaryMethods())
	again := session.RecycleItem(context.Background(), domain.ItemPotion, 3)
	assert.True(t, again.Challenged())
	assert.Len(t, env.remote.primaryMethods(), calls)
	assert.ErrorIs(t, session.Login(context.Background()), domain.ErrSessionQuarantined)
}

func TestExecuteClassifiesResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response func(req *ports.Request) (ports.Response, error)
		want     domain.OutcomeKind
		wantCode int
	}{
		{
			name:     "success",
			response: func(req *ports.Request) (ports.Response, error) { return successResponse(req), nil },
			want:     domain.OutcomeSuccess,
			wantCode: 1,
		},
		{
			name: "inventory full",
			response: func(req *ports.Request) (ports.Response, error) {
				resp := successResponse(req)
				resp[ports.MethodFortSearch] = ports.ResultPayload{Code: 4}
				return resp, nil
			},
			want:     domain.OutcomeInventoryFull,
			wantCode: 4,
		},
		{
			name: "undocumented code",
			response: func(req *ports.Request) (ports.Response, error) {
				resp := successResponse(req)
				resp[ports.MethodFortSearch] = ports.ResultPayload{Code: 42}
				return resp, nil
			},
			want:     domain.OutcomeUnknown,
			wantCode: 42,
		},
		{
			name: "transport failure",
			response: func(*ports.Request) (ports.Response, error) {
				return nil, context.DeadlineExceeded
			},
			want: domain.OutcomeUnknown,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(testSessionConfig(), fixedRandom{})
			env.remote.respond = tc.response
			session := openSession(t, env)

			result := session.SpinPokestop(context.Background(), domain.Fort{ID: "f1"}, domain.Coords{})
			assert.Equal(t, tc.want, result.Kind)
			assert.Equal(t, tc.wantCode, result.Code)
			assert.False(t, session.Account().CaptchaFlagged)
		})
	}
}

func TestExecuteBatchesAuxiliaryCalls(t *testing.T) {
	t.Parallel()

	env := newTestEnv(testSessionConfig(), fixedRandom{})
	session := openSession(t, env)

	session.UseIncubator(context.Background(), "inc-1", 77)

	require.Len(t, env.remote.requests, 1)
	assert.Equal(t, append([]ports.Method{ports.MethodUseItemEggIncubator}, ports.AuxiliaryMethods...), env.remote.requests[0].Methods())
}
