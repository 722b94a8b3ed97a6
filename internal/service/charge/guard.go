package charge

import (
	"fmt"
	"time"

	"autobook/internal/model"
	"autobook/pkg/utils"
)

// Rejection is a deterministic refusal to charge. No provider was contacted
// and no money moved; the same inputs always produce the same rejection.
type Rejection struct {
	Code    utils.ResponseCode
	Message string
}

// Authorize runs every precondition a charge must pass before any provider
// is contacted. It is pure: all inputs are loaded by the caller, nothing is
// read or written here.
func Authorize(campaign *model.Campaign, instrument *model.PaymentInstrument, offer *model.FlightOfferSnapshot, now time.Time) *Rejection {
	if campaign == nil {
		return &Rejection{
			Code:    utils.CodeCampaignNotFound,
			Message: "campaign not found",
		}
	}

	if !campaign.IsActive() {
		return &Rejection{
			Code:    utils.CodeCampaignInactive,
			Message: fmt.Sprintf("campaign %d is %s", campaign.ID, campaign.Status),
		}
	}

	if offer.Currency != campaign.Currency {
		return &Rejection{
			Code:    utils.CodeCurrencyMismatch,
			Message: fmt.Sprintf("offer currency %s does not match campaign currency %s", offer.Currency, campaign.Currency),
		}
	}

	if offer.Price > campaign.MaxPrice {
		// Both amounts are named so the rejection is actionable without
		// digging through records
		return &Rejection{
			Code: utils.CodeBudgetExceeded,
			Message: fmt.Sprintf("offer price %d %s exceeds campaign budget %d %s",
				offer.Price, offer.Currency, campaign.MaxPrice, campaign.Currency),
		}
	}

	if instrument == nil {
		return &Rejection{
			Code:    utils.CodeInstrumentMissing,
			Message: fmt.Sprintf("payment instrument %s not found", campaign.InstrumentRef),
		}
	}

	if instrument.ExpiresBefore(now.Year(), now.Month()) {
		return &Rejection{
			Code:    utils.CodeInstrumentExpired,
			Message: fmt.Sprintf("payment instrument expired %02d/%d", instrument.ExpiryMonth, instrument.ExpiryYear),
		}
	}

	return nil
}
