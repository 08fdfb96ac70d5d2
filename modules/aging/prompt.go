package aging

import (
	"fmt"
	"strings"

	"pet-aging-server/modules/common/model"
)

// Prompt length is bounded by surfacing only the first traits.
const maxPromptTraits = 2

// Fixed closing clauses. The preservation clause biases the model toward
// editing the subject instead of regenerating it.
const (
	preservationClause = "Preserve the exact breed identity, the same coat color, pattern and markings, and the same pose and background."
	styleClause        = "Photorealistic, professional pet photography quality."
)

// BuildPrompt assembles the generation instruction for one horizon.
// Deterministic string assembly only - no failure mode.
func BuildPrompt(breedName string, profile model.BreedAgingProfile, horizonYears int) string {
	pronounced := horizonYears >= model.HorizonFar

	span := fmt.Sprintf("%d years", horizonYears)
	if horizonYears == 1 {
		span = "1 year"
	}

	fragments := []string{
		fmt.Sprintf("Edit this photo of a %s to show the exact same dog %s older", breedName, span),
		eyesFragment(profile.AgingSpeed, pronounced),
		coatFragment(profile.CoatType, pronounced),
		faceFragment(profile.FaceChanges, pronounced),
		grayingFragment(profile.GrayingPattern, pronounced),
		bodyFragment(profile.BodyChanges, pronounced),
		expressionFragment(profile.SizeCategory, pronounced),
	}

	for i, trait := range profile.SpecificTraits {
		if i >= maxPromptTraits {
			break
		}
		fragments = append(fragments, "Also show: "+trait)
	}

	fragments = append(fragments, preservationClause, styleClause)

	return strings.Join(fragments, ". ") // clauses end without their own period
}

func eyesFragment(agingSpeed string, pronounced bool) string {
	if pronounced {
		switch agingSpeed {
		case SpeedFast:
			return "Give the eyes a pronounced cloudiness with a visible bluish lens haze"
		case SpeedSlow:
			return "Show a noticeable cloudiness just setting into the eyes"
		default:
			return "Show clearly noticeable cloudiness in both eyes"
		}
	}
	switch agingSpeed {
	case SpeedFast:
		return "Add a subtle but distinct early cloudiness to the eyes"
	case SpeedSlow:
		return "Keep the eyes clear with only a subtle hint of softness"
	default:
		return "Add a subtle cloudiness just beginning in the eyes"
	}
}

func coatFragment(coatType string, pronounced bool) string {
	if pronounced {
		switch coatType {
		case CoatCurly:
			return "Make the curly coat coarse, patchy and clearly thinned"
		case CoatDouble:
			return "Thin the undercoat visibly, leaving a coarse uneven topcoat"
		case CoatWire:
			return "Make the wiry coat brittle, coarse and patchy"
		case CoatLong:
			return "Make the long coat coarse, dull and noticeably thinner"
		case CoatShort:
			return "Make the short coat coarse and patchy with widespread pale hairs"
		default:
			return "Make the coat coarse, dull and patchy"
		}
	}
	switch coatType {
	case CoatCurly:
		return "Loosen the curls slightly and dull them a touch"
	case CoatDouble:
		return "Thin the undercoat slightly and dull the topcoat a touch"
	case CoatWire:
		return "Soften and slightly dull the wiry coat"
	case CoatLong:
		return "Dull the long coat slightly, losing a little of its silkiness"
	case CoatShort:
		return "Dull the short coat slightly with the first scattered pale hairs"
	default:
		return "Dull the coat slightly"
	}
}

func faceFragment(faceChanges string, pronounced bool) string {
	if pronounced {
		switch faceChanges {
		case ChangeHigh:
			return "Show MUCH deeper sagging with heavy, pronounced facial folds and drooping lower lids"
		case ChangeLow:
			return "Keep the face modestly aged with only gentle loosening"
		default:
			return "Show clear sagging around the jowls and drooping lower eyelids"
		}
	}
	switch faceChanges {
	case ChangeHigh:
		return "Add subtle early jowl looseness with faintly deepened skin folds"
	case ChangeLow:
		return "Leave the face nearly unchanged, only subtly softer"
	default:
		return "Add a subtle early loosening around the jowls and muzzle"
	}
}

func grayingFragment(grayingPattern string, pronounced bool) string {
	if pronounced {
		switch grayingPattern {
		case GrayingEarly:
			return "Turn the muzzle extensively white, spreading up around the eyes"
		case GrayingMinimal:
			return "Add a modest but visible lightening on the muzzle"
		default:
			return "Turn the muzzle clearly gray with graying over the brows"
		}
	}
	switch grayingPattern {
	case GrayingEarly:
		return "Add clear first graying on the muzzle and around the eyes"
	case GrayingMinimal:
		return "Add a barely perceptible lightening around the muzzle"
	default:
		return "Add a light dusting of gray on the muzzle"
	}
}

func bodyFragment(bodyChanges string, pronounced bool) string {
	if pronounced {
		switch bodyChanges {
		case ChangeHigh:
			return "Show visibly softened, diminished muscle tone and a narrower topline"
		case ChangeLow:
			return "Show a mildly thickened, settled body"
		default:
			return "Show a heavier, settled body with reduced muscle tone"
		}
	}
	switch bodyChanges {
	case ChangeHigh:
		return "Show the first mild softening of the muscle definition"
	case ChangeLow:
		return "Keep the body essentially unchanged"
	default:
		return "Give the body a slightly settled, more relaxed stance"
	}
}

func expressionFragment(sizeCategory string, pronounced bool) string {
	if pronounced {
		switch sizeCategory {
		case SizeSmall:
			return "Give it a senior posture while keeping a bright, alert expression"
		case SizeGiant:
			return "Give it a distinctly senior posture and a calm, tired expression"
		default:
			return "Give it a senior posture with a calm, settled expression"
		}
	}
	switch sizeCategory {
	case SizeSmall:
		return "Mellow the bright expression just a little"
	case SizeGiant:
		return "Bring in a calmer, wiser expression arriving early"
	default:
		return "Give it a slightly calmer, more settled expression"
	}
}
