package aging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pet-aging-server/modules/common/model"
)

func TestBuildPromptCarriesBreedAndFixedClauses(t *testing.T) {
	profile := DeriveProfile("Beagle")
	prompt := BuildPrompt("Beagle", profile, model.HorizonNear)

	assert.Contains(t, prompt, "Beagle")
	assert.Contains(t, prompt, "1 year older")
	assert.NotContains(t, prompt, "1 years older")
	assert.Contains(t, prompt, preservationClause)
	assert.Contains(t, prompt, styleClause)
}

func TestBuildPromptHorizonsDiffer(t *testing.T) {
	profile := DeriveProfile("Shar Pei")

	near := BuildPrompt("Shar Pei", profile, model.HorizonNear)
	far := BuildPrompt("Shar Pei", profile, model.HorizonFar)

	assert.NotEqual(t, near, far)
	assert.Contains(t, near, "1 year older")
	assert.Contains(t, far, "3 years older")
}

func TestBuildPromptFarHorizonIsPronounced(t *testing.T) {
	profile := DeriveProfile("Shar Pei") // face changes: high

	near := BuildPrompt("Shar Pei", profile, model.HorizonNear)
	far := BuildPrompt("Shar Pei", profile, model.HorizonFar)

	assert.Contains(t, near, "subtle")
	assert.Contains(t, far, "MUCH deeper")
}

func TestBuildPromptCapsTraits(t *testing.T) {
	profile := DeriveProfile("Beagle")
	profile.SpecificTraits = []string{"trait one", "trait two", "trait three"}

	prompt := BuildPrompt("Beagle", profile, model.HorizonFar)

	assert.Equal(t, 2, strings.Count(prompt, "Also show:"))
	assert.NotContains(t, prompt, "trait three")
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	profile := DeriveProfile("Pug")

	assert.Equal(t,
		BuildPrompt("Pug", profile, model.HorizonFar),
		BuildPrompt("Pug", profile, model.HorizonFar))
}
