package aging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveProfileUnknownBreedGetsDefaults(t *testing.T) {
	profile := DeriveProfile("Norwegian Lundehund")

	assert.Equal(t, SizeMedium, profile.SizeCategory)
	assert.Equal(t, CoatStandard, profile.CoatType)
	assert.Equal(t, GrayingStandard, profile.GrayingPattern)
	assert.Equal(t, ChangeModerate, profile.FaceChanges)
	assert.Equal(t, ChangeModerate, profile.BodyChanges)
	assert.Equal(t, SpeedModerate, profile.AgingSpeed)
	assert.Empty(t, profile.SpecificTraits)
}

func TestDeriveProfileIsDeterministic(t *testing.T) {
	first := DeriveProfile("Golden Retriever")
	second := DeriveProfile("Golden Retriever")

	assert.Equal(t, first, second)
}

func TestDeriveProfileNormalizesName(t *testing.T) {
	assert.Equal(t, DeriveProfile("golden retriever"), DeriveProfile("  GOLDEN RETRIEVER  "))
}

func TestDeriveProfileSharPei(t *testing.T) {
	profile := DeriveProfile("Shar Pei")

	assert.Equal(t, ChangeHigh, profile.FaceChanges)
	assert.Equal(t, CoatShort, profile.CoatType)
	assert.Contains(t, profile.SpecificTraits, "deepening wrinkles and heavier skin folds")
}

func TestDeriveProfileSizeDrivesAgingSpeed(t *testing.T) {
	assert.Equal(t, SpeedSlow, DeriveProfile("Chihuahua").AgingSpeed)
	assert.Equal(t, SpeedFast, DeriveProfile("Great Dane").AgingSpeed)
	assert.Equal(t, SpeedFast, DeriveProfile("German Shepherd").AgingSpeed)
	assert.Equal(t, SpeedModerate, DeriveProfile("Beagle").AgingSpeed)
}

func TestDeriveProfileCompoundNameMatchesEachDimension(t *testing.T) {
	profile := DeriveProfile("Labrador Retriever Mix")

	assert.Equal(t, SizeLarge, profile.SizeCategory)
	assert.Equal(t, GrayingEarly, profile.GrayingPattern)
	assert.Contains(t, profile.SpecificTraits, "muzzle turns distinctly white well before old age")
}

func TestDeriveProfileTraitsAccumulate(t *testing.T) {
	// Matches both the wrinkle rule and the flat-muzzle rule.
	profile := DeriveProfile("English Bulldog")

	assert.Len(t, profile.SpecificTraits, 2)
	assert.Equal(t, "deepening wrinkles and heavier skin folds", profile.SpecificTraits[0])
}

func TestDeriveProfileFirstMatchWinsPerDimension(t *testing.T) {
	// "poodle" and "doodle" both hit the curly rule; a doodle cross with a
	// retriever name still resolves coat from the first matching rule.
	profile := DeriveProfile("Goldendoodle")

	assert.Equal(t, CoatCurly, profile.CoatType)
}
