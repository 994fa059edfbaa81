package matching

import (
	"math"
	"testing"

	"github.com/matchcare/platform/pkg/common/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func fullPatient() *models.PatientProfile {
	return &models.PatientProfile{
		CareLevel: intPtr(3),
		Latitude:  floatPtr(52.0),
		Longitude: floatPtr(13.0),
		MedicalRequirements: map[string]interface{}{
			"dementia": true,
		},
		LifestyleAttributes: map[string]interface{}{
			"smoking": false,
		},
	}
}

func nearbyProvider() *models.ProviderProfile {
	return &models.ProviderProfile{
		FacilityName:    "Sunrise Care Home",
		Latitude:        floatPtr(52.05),
		Longitude:       floatPtr(13.02),
		Specializations: []string{"Dementia", "Mobility"},
	}
}

func TestScoreFullProfiles(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	result := scorer.Score(fullPatient(), nearbyProvider())

	// 30*1.0 + 20*1.0 + 20*1.0 + 20*0.7 + 10*0.6 = 90.0
	if result.Score != 90.0 {
		t.Fatalf("expected score 90.0, got %v", result.Score)
	}
	if result.Explanation["summary"] != "Excellent match - highly recommended" {
		t.Fatalf("unexpected summary: %v", result.Explanation["summary"])
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	patient := fullPatient()
	provider := nearbyProvider()

	first := scorer.Score(patient, provider)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(patient, provider); got.Score != first.Score {
			t.Fatalf("score not deterministic: %v vs %v", got.Score, first.Score)
		}
	}
}

func TestScoreMissingDataFallsBackToNeutral(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	patient := &models.PatientProfile{}
	provider := &models.ProviderProfile{}

	result := scorer.Score(patient, provider)

	// Every dimension neutral: 30*0.5 + 20*0.5 + 20*0.5 + 20*0.5 + 10*0.5 = 50.0
	if result.Score != 50.0 {
		t.Fatalf("expected neutral score 50.0, got %v", result.Score)
	}

	breakdown := result.Breakdown
	for _, key := range []string{"careLevelScore", "distanceScore", "specializationScore", "lifestyleScore", "socialScore"} {
		if breakdown[key] != 0.5 {
			t.Fatalf("expected %s to be 0.5, got %v", key, breakdown[key])
		}
	}
}

func TestDistanceBuckets(t *testing.T) {
	cases := []struct {
		name string
		km   float64
		want float64
	}{
		{"within 10km", 5, 1.0},
		{"within 25km", 20, 0.75},
		{"within 50km", 40, 0.5},
		{"within 100km", 80, 0.25},
		{"beyond 100km", 200, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// 1 degree of latitude is ~111.19 km at these coordinates.
			offset := tc.km / 111.19
			patient := &models.PatientProfile{Latitude: floatPtr(52.0), Longitude: floatPtr(13.0)}
			provider := &models.ProviderProfile{Latitude: floatPtr(52.0 + offset), Longitude: floatPtr(13.0)}

			if got := distanceScore(patient, provider); got != tc.want {
				t.Fatalf("distance %v km: expected %v, got %v", tc.km, tc.want, got)
			}
		})
	}
}

func TestSpecializationScoreCaseInsensitiveOverlap(t *testing.T) {
	patient := &models.PatientProfile{
		MedicalRequirements: map[string]interface{}{
			"Dementia":   true,
			"mobility":   true,
			"palliative": true,
			"dialysis":   false, // disabled requirements do not count
		},
	}
	provider := &models.ProviderProfile{
		Specializations: []string{"DEMENTIA", "Mobility"},
	}

	got := specializationScore(patient, provider)
	want := 2.0 / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSpecializationScoreNoActiveRequirements(t *testing.T) {
	patient := &models.PatientProfile{
		MedicalRequirements: map[string]interface{}{
			"dementia": false,
			"notes":    "free text",
		},
	}
	provider := &models.ProviderProfile{Specializations: []string{"dementia"}}

	if got := specializationScore(patient, provider); got != 0.5 {
		t.Fatalf("expected neutral 0.5, got %v", got)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{72.125, 72.13},
		{72.124, 72.12},
		{0.005, 0.01},
		{90.0, 90.0},
	}
	for _, tc := range cases {
		if got := roundHalfUp(tc.in); got != tc.want {
			t.Fatalf("roundHalfUp(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestSummarizeBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "Excellent match - highly recommended"},
		{90, "Excellent match - highly recommended"},
		{75, "Very good match - recommended"},
		{60, "Good match - suitable"},
		{50, "Moderate match - consider alternatives"},
		{49.99, "Limited match - explore other options"},
	}
	for _, tc := range cases {
		if got := summarize(tc.score); got != tc.want {
			t.Fatalf("summarize(%v): expected %q, got %q", tc.score, tc.want, got)
		}
	}
}

func TestExplainReasons(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	result := scorer.Score(fullPatient(), nearbyProvider())

	reasons, ok := result.Explanation["reasons"].([]string)
	if !ok {
		t.Fatalf("expected reasons slice, got %T", result.Explanation["reasons"])
	}
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d: %v", len(reasons), reasons)
	}
	if reasons[0] != "Care level compatibility: Patient requires level 3 care" {
		t.Fatalf("unexpected care level reason: %q", reasons[0])
	}
	if reasons[2] != "Specialized in: dementia" {
		t.Fatalf("unexpected specialization reason: %q", reasons[2])
	}
}

func TestCustomDimensionFuncs(t *testing.T) {
	always := func(v float64) DimensionFunc {
		return func(*models.PatientProfile, *models.ProviderProfile) float64 { return v }
	}

	scorer := NewScorerWithDimensions(DefaultWeights(), always(1.0), always(1.0))
	result := scorer.Score(fullPatient(), nearbyProvider())

	// 30 + 20 + 20 + 20 + 10 = 100 with all dimensions maxed.
	if result.Score != 100.0 {
		t.Fatalf("expected 100.0, got %v", result.Score)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Berlin to Potsdam center is roughly 27 km.
	got := haversineKm(52.5200, 13.4050, 52.3906, 13.0645)
	if got < 26 || got > 29 {
		t.Fatalf("expected ~27km, got %v", got)
	}
}
