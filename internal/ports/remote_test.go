package ports

import (
	"testing"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRequestWithAuxiliaryKeepsPrimaryCallFirst(t *testing.T) {
	t.Parallel()

	req := NewRequest().RecycleInventoryItem(domain.ItemPotion, 5).WithAuxiliary()

	assert.Equal(t, []Method{
		MethodRecycleInventoryItem,
		MethodCheckChallenge,
		MethodGetHatchedEggs,
		MethodGetInventory,
		MethodCheckAwardedBadges,
		MethodGetBuddyWalked,
	}, req.Methods())
	assert.Equal(t, RecycleParams{ItemID: domain.ItemPotion, Count: 5}, req.Calls()[0].Params)
}

func TestResponseChallengeURLTreatsBlankAsNone(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Response{}.ChallengeURL())
	assert.Empty(t, Response{MethodCheckChallenge: ChallengePayload{ChallengeURL: " "}}.ChallengeURL())
	assert.Equal(t, "https://c", Response{
		MethodCheckChallenge: ChallengePayload{ShowChallenge: true, ChallengeURL: "https://c"},
	}.ChallengeURL())
}

func TestResponseAccessors(t *testing.T) {
	t.Parallel()

	resp := Response{
		MethodFortSearch: ResultPayload{Code: 4},
		MethodGetPlayer:  PlayerPayload{TutorialState: []domain.TutorialStep{0, 1}},
		MethodGetInventory: InventoryPayload{Items: []domain.InventoryItem{
			{Item: &domain.ItemStack{ItemID: domain.ItemPokeBall, Count: 3}},
		}},
	}

	code, ok := resp.Result(MethodFortSearch)
	assert.True(t, ok)
	assert.Equal(t, 4, code)

	_, ok = resp.Result(MethodEncounter)
	assert.False(t, ok)

	state, ok := resp.TutorialState()
	assert.True(t, ok)
	assert.True(t, state.Has(domain.TutorialAvatarSelection))
	assert.Len(t, resp.InventoryItems(), 1)
}
