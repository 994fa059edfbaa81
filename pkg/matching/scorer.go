package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/matchcare/platform/pkg/common/models"
)

const earthRadiusKm = 6371

// DimensionFunc scores one compatibility dimension on [0, 1].
type DimensionFunc func(patient *models.PatientProfile, provider *models.ProviderProfile) float64

// Result carries the rounded score plus the explanation and per-dimension
// breakdown that are persisted alongside it.
type Result struct {
	Score       float64
	Explanation map[string]interface{}
	Breakdown   map[string]interface{}
}

// Scorer computes compatibility scores. It is pure: no I/O, no side effects,
// deterministic for the same profile inputs. The lifestyle and social
// dimensions are injectable so their placeholder policies can be refined
// without touching orchestration.
type Scorer struct {
	weights   Weights
	lifestyle DimensionFunc
	social    DimensionFunc
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{
		weights:   weights,
		lifestyle: LifestyleCompatibility,
		social:    SocialCompatibility,
	}
}

// NewScorerWithDimensions overrides the lifestyle and social dimension
// policies. Nil funcs fall back to the defaults.
func NewScorerWithDimensions(weights Weights, lifestyle, social DimensionFunc) *Scorer {
	s := NewScorer(weights)
	if lifestyle != nil {
		s.lifestyle = lifestyle
	}
	if social != nil {
		s.social = social
	}
	return s
}

func (s *Scorer) Score(patient *models.PatientProfile, provider *models.ProviderProfile) Result {
	careLevel := careLevelScore(patient)
	distance := distanceScore(patient, provider)
	specialization := specializationScore(patient, provider)
	lifestyle := s.lifestyle(patient, provider)
	social := s.social(patient, provider)

	total := careLevel*float64(s.weights.CareLevel) +
		distance*float64(s.weights.Distance) +
		specialization*float64(s.weights.Specialization) +
		lifestyle*float64(s.weights.Lifestyle) +
		social*float64(s.weights.Social)

	score := roundHalfUp(total)

	breakdown := map[string]interface{}{
		"careLevelScore":      careLevel,
		"distanceScore":       distance,
		"specializationScore": specialization,
		"lifestyleScore":      lifestyle,
		"socialScore":         social,
		"weights": map[string]interface{}{
			"careLevel":      s.weights.CareLevel,
			"distance":       s.weights.Distance,
			"specialization": s.weights.Specialization,
			"lifestyle":      s.weights.Lifestyle,
			"social":         s.weights.Social,
		},
	}

	return Result{
		Score:       score,
		Explanation: explain(patient, provider, score),
		Breakdown:   breakdown,
	}
}

func careLevelScore(patient *models.PatientProfile) float64 {
	if patient.CareLevel == nil {
		return 0.5
	}
	// Provider capability is assumed sufficient for every care level until
	// the profile service exposes capability data.
	return 1.0
}

func distanceScore(patient *models.PatientProfile, provider *models.ProviderProfile) float64 {
	if patient.Latitude == nil || patient.Longitude == nil ||
		provider.Latitude == nil || provider.Longitude == nil {
		return 0.5
	}

	distance := haversineKm(*patient.Latitude, *patient.Longitude, *provider.Latitude, *provider.Longitude)

	switch {
	case distance <= 10:
		return 1.0
	case distance <= 25:
		return 0.75
	case distance <= 50:
		return 0.5
	case distance <= 100:
		return 0.25
	default:
		return 0.0
	}
}

func specializationScore(patient *models.PatientProfile, provider *models.ProviderProfile) float64 {
	if len(patient.MedicalRequirements) == 0 || len(provider.Specializations) == 0 {
		return 0.5
	}

	needs := activeRequirements(patient.MedicalRequirements)
	if len(needs) == 0 {
		return 0.5
	}

	specs := make(map[string]bool, len(provider.Specializations))
	for _, spec := range provider.Specializations {
		specs[strings.ToLower(spec)] = true
	}

	matched := 0
	for need := range needs {
		if specs[need] {
			matched++
		}
	}

	return float64(matched) / float64(len(needs))
}

// LifestyleCompatibility is the default lifestyle dimension: a neutral-leaning
// base when lifestyle attributes are present, pending richer provider data.
func LifestyleCompatibility(patient *models.PatientProfile, provider *models.ProviderProfile) float64 {
	if len(patient.LifestyleAttributes) == 0 {
		return 0.5
	}
	return 0.7
}

// SocialCompatibility is the default social dimension, same placeholder shape
// as LifestyleCompatibility.
func SocialCompatibility(patient *models.PatientProfile, provider *models.ProviderProfile) float64 {
	if patient.LifestyleAttributes == nil {
		return 0.5
	}
	return 0.6
}

func explain(patient *models.PatientProfile, provider *models.ProviderProfile, score float64) map[string]interface{} {
	reasons := []string{}

	if patient.CareLevel != nil {
		reasons = append(reasons, fmt.Sprintf("Care level compatibility: Patient requires level %d care", *patient.CareLevel))
	}

	if patient.Latitude != nil && patient.Longitude != nil &&
		provider.Latitude != nil && provider.Longitude != nil {
		distance := haversineKm(*patient.Latitude, *patient.Longitude, *provider.Latitude, *provider.Longitude)
		reasons = append(reasons, fmt.Sprintf("Located %.1f km away", distance))
	}

	if matches := matchedSpecializations(patient, provider); len(matches) > 0 {
		reasons = append(reasons, "Specialized in: "+strings.Join(matches, ", "))
	}

	if len(patient.LifestyleAttributes) > 0 {
		reasons = append(reasons, "Lifestyle preferences considered")
	}

	return map[string]interface{}{
		"score":   score,
		"reasons": reasons,
		"summary": summarize(score),
	}
}

func matchedSpecializations(patient *models.PatientProfile, provider *models.ProviderProfile) []string {
	needs := activeRequirements(patient.MedicalRequirements)
	if len(needs) == 0 {
		return nil
	}

	var matches []string
	for _, spec := range provider.Specializations {
		if needs[strings.ToLower(spec)] {
			matches = append(matches, strings.ToLower(spec))
		}
	}
	sort.Strings(matches)
	return matches
}

// activeRequirements extracts the requirement keys whose value is true,
// lower-cased for case-insensitive comparison against specializations.
func activeRequirements(requirements map[string]interface{}) map[string]bool {
	active := make(map[string]bool, len(requirements))
	for key, value := range requirements {
		if enabled, ok := value.(bool); ok && enabled {
			active[strings.ToLower(key)] = true
		}
	}
	return active
}

func summarize(score float64) string {
	switch {
	case score >= 90:
		return "Excellent match - highly recommended"
	case score >= 75:
		return "Very good match - recommended"
	case score >= 60:
		return "Good match - suitable"
	case score >= 50:
		return "Moderate match - consider alternatives"
	default:
		return "Limited match - explore other options"
	}
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	latDistance := toRadians(lat2 - lat1)
	lonDistance := toRadians(lon2 - lon1)

	a := math.Sin(latDistance/2)*math.Sin(latDistance/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(lonDistance/2)*math.Sin(lonDistance/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func roundHalfUp(value float64) float64 {
	return math.Floor(value*100+0.5) / 100
}
