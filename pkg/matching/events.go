package matching

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
)

// significantFields are the profile attributes whose change warrants a full
// score recalculation. Cosmetic edits (bio, photos, contact details) do not
// trigger a fan-out.
var significantFields = []string{
	"careLevel",
	"careType",
	"region",
	"location",
	"specializations",
	"medicalRequirements",
	"availableRooms",
}

// Dispatcher routes inbound profile events to the orchestrator through an
// explicit type-to-handler table. Unknown or malformed events are logged and
// skipped so the consumer loop never wedges on bad input.
type Dispatcher struct {
	handlers map[string]func(ctx context.Context, event models.Event) error
}

func NewDispatcher(service *Service) *Dispatcher {
	d := &Dispatcher{}
	d.handlers = map[string]func(ctx context.Context, event models.Event) error{
		"profile.created": func(ctx context.Context, event models.Event) error {
			return handleProfileCreated(service, event)
		},
		"profile.updated": func(ctx context.Context, event models.Event) error {
			return handleProfileUpdated(service, event)
		},
	}
	return d
}

func (d *Dispatcher) Handle(ctx context.Context, event models.Event) error {
	handler, ok := d.handlers[event.Type]
	if !ok {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Warn("Unknown event type, skipping")
		return nil
	}
	return handler(ctx, event)
}

func handleProfileCreated(service *Service, event models.Event) error {
	profileID, profileType, ok := parseProfileEvent(event)
	if !ok {
		return nil
	}

	logger.Log.WithFields(map[string]interface{}{
		"profile_id":   profileID,
		"profile_type": profileType,
	}).Info("Received profile created event")

	dispatchRecalculation(service, profileID, profileType)
	return nil
}

func handleProfileUpdated(service *Service, event models.Event) error {
	profileID, profileType, ok := parseProfileEvent(event)
	if !ok {
		return nil
	}

	logger.Log.WithFields(map[string]interface{}{
		"profile_id":   profileID,
		"profile_type": profileType,
	}).Info("Received profile updated event")

	changes, _ := event.Data["changes"].(map[string]interface{})
	if !touchesSignificantField(changes) {
		logger.Log.WithField("profile_id", profileID).Debug("Profile update does not require match recalculation")
		return nil
	}

	dispatchRecalculation(service, profileID, profileType)
	return nil
}

func dispatchRecalculation(service *Service, profileID uuid.UUID, profileType string) {
	switch profileType {
	case "patient":
		service.RecalculateForPatient(profileID)
	case "provider":
		service.RecalculateForProvider(profileID)
	default:
		logger.Log.WithFields(map[string]interface{}{
			"profile_id":   profileID,
			"profile_type": profileType,
		}).Warn("Unknown profile type, skipping")
	}
}

func parseProfileEvent(event models.Event) (uuid.UUID, string, bool) {
	rawID, _ := event.Data["profileId"].(string)
	profileID, err := uuid.Parse(rawID)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"profile_id": rawID,
		}).Warn("Malformed profile event, skipping")
		return uuid.Nil, "", false
	}

	profileType, _ := event.Data["profileType"].(string)
	return profileID, strings.ToLower(profileType), true
}

func touchesSignificantField(changes map[string]interface{}) bool {
	if len(changes) == 0 {
		return false
	}
	for _, field := range significantFields {
		if _, ok := changes[field]; ok {
			return true
		}
	}
	return false
}
