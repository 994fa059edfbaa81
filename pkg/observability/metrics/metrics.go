package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	matchesCalculated    atomic.Int64
	notificationsEmitted atomic.Int64
	fanoutPairFailures   atomic.Int64
	offersExpired        atomic.Int64
	offerEvents          atomic.Int64
	careRequests         atomic.Int64
)

func AddMatchesCalculated(n int) {
	matchesCalculated.Add(int64(n))
}

func AddNotificationsEmitted(n int) {
	notificationsEmitted.Add(int64(n))
}

func AddFanoutPairFailures(n int) {
	fanoutPairFailures.Add(int64(n))
}

func AddOffersExpired(n int) {
	offersExpired.Add(int64(n))
}

func AddOfferEvents(n int) {
	offerEvents.Add(int64(n))
}

func AddCareRequests(n int) {
	careRequests.Add(int64(n))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP matchcare_matches_calculated_total Number of match scores calculated since start.\n")
	fmt.Fprintf(w, "# TYPE matchcare_matches_calculated_total counter\n")
	fmt.Fprintf(w, "matchcare_matches_calculated_total %d\n", matchesCalculated.Load())

	fmt.Fprintf(w, "# HELP matchcare_match_notifications_emitted_total Number of threshold-crossing match notifications emitted.\n")
	fmt.Fprintf(w, "# TYPE matchcare_match_notifications_emitted_total counter\n")
	fmt.Fprintf(w, "matchcare_match_notifications_emitted_total %d\n", notificationsEmitted.Load())

	fmt.Fprintf(w, "# HELP matchcare_fanout_pair_failures_total Number of pairs skipped during recalculation fan-outs.\n")
	fmt.Fprintf(w, "# TYPE matchcare_fanout_pair_failures_total counter\n")
	fmt.Fprintf(w, "matchcare_fanout_pair_failures_total %d\n", fanoutPairFailures.Load())

	fmt.Fprintf(w, "# HELP matchcare_offers_expired_total Number of offers expired by the scheduled sweep.\n")
	fmt.Fprintf(w, "# TYPE matchcare_offers_expired_total counter\n")
	fmt.Fprintf(w, "matchcare_offers_expired_total %d\n", offersExpired.Load())

	fmt.Fprintf(w, "# HELP matchcare_offer_events_total Number of offer lifecycle events published.\n")
	fmt.Fprintf(w, "# TYPE matchcare_offer_events_total counter\n")
	fmt.Fprintf(w, "matchcare_offer_events_total %d\n", offerEvents.Load())

	fmt.Fprintf(w, "# HELP matchcare_care_requests_total Number of care requests submitted.\n")
	fmt.Fprintf(w, "# TYPE matchcare_care_requests_total counter\n")
	fmt.Fprintf(w, "matchcare_care_requests_total %d\n", careRequests.Load())
}
