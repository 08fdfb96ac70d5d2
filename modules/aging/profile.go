package aging

import (
	"strings"

	"pet-aging-server/modules/common/model"
)

// Profile dimension values. Dimensions with no rule match keep the neutral
// default (medium / standard / moderate).
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
	SizeGiant  = "giant"

	CoatShort    = "short"
	CoatLong     = "long"
	CoatCurly    = "curly"
	CoatDouble   = "double"
	CoatWire     = "wire"
	CoatStandard = "standard"

	GrayingEarly    = "early"
	GrayingMinimal  = "minimal"
	GrayingStandard = "standard"

	ChangeLow      = "low"
	ChangeModerate = "moderate"
	ChangeHigh     = "high"

	SpeedSlow     = "slow"
	SpeedModerate = "moderate"
	SpeedFast     = "fast"
)

// keywordRule maps breed-name substrings to one dimension value. Rules in a
// group are evaluated in order; the first match wins for that dimension.
type keywordRule struct {
	keywords []string
	value    string
}

var sizeRules = []keywordRule{
	{[]string{"chihuahua", "pomeranian", "yorkshire", "yorkie", "maltese", "papillon", "toy", "teacup", "miniature", "shih tzu", "dachshund", "pug", "havanese", "pekingese"}, SizeSmall},
	{[]string{"great dane", "mastiff", "saint bernard", "st. bernard", "newfoundland", "irish wolfhound", "leonberger", "great pyrenees"}, SizeGiant},
	{[]string{"labrador", "retriever", "german shepherd", "shepherd", "rottweiler", "doberman", "husky", "malamute", "bernese", "boxer", "akita", "greyhound", "weimaraner"}, SizeLarge},
}

var coatRules = []keywordRule{
	{[]string{"poodle", "doodle", "bichon", "curly"}, CoatCurly},
	{[]string{"husky", "malamute", "samoyed", "akita", "chow", "shiba", "corgi", "german shepherd"}, CoatDouble},
	{[]string{"terrier", "schnauzer", "wirehaired", "wire"}, CoatWire},
	{[]string{"afghan", "collie", "sheepdog", "spaniel", "setter", "maltese", "shih tzu", "lhasa", "pekingese", "havanese", "longhair", "long hair"}, CoatLong},
	{[]string{"boxer", "bulldog", "pit", "beagle", "dalmatian", "pointer", "great dane", "doberman", "rottweiler", "vizsla", "weimaraner", "shorthair", "short hair", "shar pei"}, CoatShort},
}

var grayingRules = []keywordRule{
	{[]string{"golden retriever", "labrador", "rottweiler", "doberman", "schnauzer", "irish setter"}, GrayingEarly},
	{[]string{"samoyed", "maltese", "bichon", "west highland", "westie", "american eskimo", "great pyrenees"}, GrayingMinimal},
}

var faceRules = []keywordRule{
	{[]string{"shar pei", "bulldog", "mastiff", "pug", "bloodhound", "basset", "boxer", "dogue", "neapolitan"}, ChangeHigh},
	{[]string{"husky", "malamute", "samoyed", "shiba", "akita"}, ChangeLow},
}

var bodyRules = []keywordRule{
	{[]string{"greyhound", "whippet", "doberman", "boxer", "pointer", "vizsla", "weimaraner", "pit"}, ChangeHigh},
	{[]string{"chihuahua", "pomeranian", "maltese", "papillon", "shih tzu"}, ChangeLow},
}

// traitRules accumulate: every matching rule appends, in table order. Unlike
// the dimensions above, a compound breed name can collect several traits.
var traitRules = []keywordRule{
	{[]string{"shar pei", "bulldog", "pug", "mastiff", "bloodhound", "basset"}, "deepening wrinkles and heavier skin folds"},
	{[]string{"pug", "bulldog", "boxer", "shih tzu", "pekingese", "boston", "french bulldog"}, "flat muzzle whitens early and jowls droop visibly"},
	{[]string{"greyhound", "whippet", "vizsla", "weimaraner", "pointer", "doberman"}, "athletic muscle tone visibly softens with age"},
	{[]string{"husky", "malamute", "samoyed"}, "facial mask markings fade and blend as the coat ages"},
	{[]string{"golden retriever", "labrador"}, "muzzle turns distinctly white well before old age"},
	{[]string{"poodle", "doodle", "bichon"}, "curly coat loosens and thins around the face first"},
}

// DeriveProfile maps a breed name to its aging profile. Total and
// deterministic: unknown breeds get the neutral defaults, never an error.
func DeriveProfile(breedName string) model.BreedAgingProfile {
	name := strings.ToLower(strings.TrimSpace(breedName))

	profile := model.BreedAgingProfile{
		SizeCategory:   SizeMedium,
		CoatType:       CoatStandard,
		GrayingPattern: GrayingStandard,
		FaceChanges:    ChangeModerate,
		BodyChanges:    ChangeModerate,
		AgingSpeed:     SpeedModerate,
		SpecificTraits: []string{},
	}

	if v, ok := firstMatch(name, sizeRules); ok {
		profile.SizeCategory = v
	}
	if v, ok := firstMatch(name, coatRules); ok {
		profile.CoatType = v
	}
	if v, ok := firstMatch(name, grayingRules); ok {
		profile.GrayingPattern = v
	}
	if v, ok := firstMatch(name, faceRules); ok {
		profile.FaceChanges = v
	}
	if v, ok := firstMatch(name, bodyRules); ok {
		profile.BodyChanges = v
	}

	// Aging speed follows size: big dogs age fast, small dogs slowly.
	switch profile.SizeCategory {
	case SizeGiant, SizeLarge:
		profile.AgingSpeed = SpeedFast
	case SizeSmall:
		profile.AgingSpeed = SpeedSlow
	}

	for _, rule := range traitRules {
		if matchesAny(name, rule.keywords) {
			profile.SpecificTraits = append(profile.SpecificTraits, rule.value)
		}
	}

	return profile
}

func firstMatch(name string, rules []keywordRule) (string, bool) {
	for _, rule := range rules {
		if matchesAny(name, rule.keywords) {
			return rule.value, true
		}
	}
	return "", false
}

func matchesAny(name string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}
