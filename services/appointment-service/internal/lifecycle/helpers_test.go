package lifecycle

import (
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/availability"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

func availabilityQuery(start, end model.Clock, stylist string) availability.Query {
	return availability.Query{Date: bookingDay, StartTime: start, EndTime: end, StylistID: stylist}
}
