// Package antisnipe pushes a lot's close time out when a bid lands near
// the deadline, so last-second sniping always leaves room for a response.
package antisnipe

import (
	"time"

	"antiquebid/internal/models"
)

// Extend applies the anti-snipe rule to the lot and reports whether the
// end time moved. When extension is enabled and less than ExtensionTime
// remains, AuctionEnd advances by exactly ExtensionTime. There is no cap
// on the number of extensions; every qualifying bid extends again. The
// end time only ever moves forward.
func Extend(lot *models.Lot, now time.Time) bool {
	if !lot.ExtendOnBid || lot.ExtensionTime <= 0 {
		return false
	}
	if lot.AuctionEnd.Sub(now) >= lot.ExtensionTime {
		return false
	}
	lot.AuctionEnd = lot.AuctionEnd.Add(lot.ExtensionTime)
	return true
}
