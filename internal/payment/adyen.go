package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"autobook/internal/model"
)

// AdyenProvider charges stored instruments through the Adyen Checkout API.
// The integration is plain REST; Adyen resolves stored-card charges
// synchronously the same way the primary does.
type AdyenProvider struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	merchantAccount string
}

// NewAdyenProvider creates an Adyen provider
func NewAdyenProvider(baseURL, apiKey, merchantAccount string, timeout time.Duration) *AdyenProvider {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &AdyenProvider{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         baseURL,
		apiKey:          apiKey,
		merchantAccount: merchantAccount,
	}
}

// Name returns the provider identifier
func (p *AdyenProvider) Name() string {
	return model.ProviderSecondary
}

type adyenAmount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type adyenPaymentMethod struct {
	StoredPaymentMethodID string `json:"storedPaymentMethodId"`
}

type adyenPaymentRequest struct {
	Amount                   adyenAmount        `json:"amount"`
	Reference                string             `json:"reference"`
	PaymentMethod            adyenPaymentMethod `json:"paymentMethod"`
	ShopperReference         string             `json:"shopperReference"`
	ShopperInteraction       string             `json:"shopperInteraction"`
	RecurringProcessingModel string             `json:"recurringProcessingModel"`
	MerchantAccount          string             `json:"merchantAccount"`
}

type adyenPaymentResponse struct {
	PSPReference      string          `json:"pspReference"`
	ResultCode        string          `json:"resultCode"`
	RefusalReason     string          `json:"refusalReason"`
	RefusalReasonCode string          `json:"refusalReasonCode"`
	Action            json.RawMessage `json:"action"`
}

type adyenErrorResponse struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// CreateIntent charges the stored instrument as a merchant-initiated
// transaction against the stored card.
func (p *AdyenProvider) CreateIntent(ctx context.Context, req *ChargeRequest) (*IntentResult, error) {
	body := adyenPaymentRequest{
		Amount: adyenAmount{
			Value:    req.Amount,
			Currency: req.Currency,
		},
		Reference:                req.IdempotencyKey,
		PaymentMethod:            adyenPaymentMethod{StoredPaymentMethodID: req.InstrumentRef},
		ShopperReference:         req.CustomerRef,
		ShopperInteraction:       "ContAuth",
		RecurringProcessingModel: "UnscheduledCardOnFile",
		MerchantAccount:          p.merchantAccount,
	}

	var resp adyenPaymentResponse
	if err := p.post(ctx, "/payments", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	return p.mapResult(&resp)
}

// Refund refunds a captured payment in full
func (p *AdyenProvider) Refund(ctx context.Context, req *RefundRequest) error {
	body := map[string]string{
		"merchantAccount": p.merchantAccount,
		"reference":       req.IdempotencyKey,
	}

	var resp adyenPaymentResponse
	path := fmt.Sprintf("/payments/%s/refunds", req.IntentRef)
	return p.post(ctx, path, req.IdempotencyKey, body, &resp)
}

// mapResult translates an Adyen result code into the canonical result
func (p *AdyenProvider) mapResult(resp *adyenPaymentResponse) (*IntentResult, error) {
	result := &IntentResult{
		IntentRef: resp.PSPReference,
		Provider:  p.Name(),
	}

	switch resp.ResultCode {
	case "Authorised":
		result.Status = model.IntentStatusSucceeded
		return result, nil

	case "RedirectShopper", "IdentifyShopper", "ChallengeShopper", "PresentToShopper":
		result.Status = model.IntentStatusRequiresAction
		result.NextAction = resp.Action
		return result, nil

	case "Refused", "Cancelled":
		result.Status = model.IntentStatusFailed
		result.FailureCode = resp.RefusalReasonCode
		if result.FailureCode == "" {
			result.FailureCode = resp.RefusalReason
		}
		return result, nil

	case "Error":
		return nil, &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Code: resp.RefusalReasonCode, Err: fmt.Errorf("adyen error result: %s", resp.RefusalReason)}

	default:
		return nil, &ProviderError{Provider: p.Name(), Kind: KindInvalid, Code: resp.ResultCode, Err: fmt.Errorf("unknown result code %q", resp.ResultCode)}
	}
}

func (p *AdyenProvider) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Kind: KindInvalid, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &ProviderError{Provider: p.Name(), Kind: KindInvalid, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Err: err}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Code: fmt.Sprintf("http_%d", resp.StatusCode), Err: fmt.Errorf("adyen returned %d", resp.StatusCode)}
	}

	if resp.StatusCode >= 400 {
		var apiErr adyenErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.ErrorCode != "" {
			return &ProviderError{Provider: p.Name(), Kind: KindInvalid, Code: apiErr.ErrorCode, Err: fmt.Errorf("adyen rejected request: %s", apiErr.Message)}
		}
		return &ProviderError{Provider: p.Name(), Kind: KindInvalid, Code: fmt.Sprintf("http_%d", resp.StatusCode), Err: fmt.Errorf("adyen returned %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
