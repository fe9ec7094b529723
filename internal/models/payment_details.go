package models

import (
	"encoding/json"
	"fmt"
)

// Payment method detail schemas, one per method_type. The stored payload is
// always one of these variants; anything else is a validation error.

// CryptoWalletDetails for method_type crypto_wallet
type CryptoWalletDetails struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// BankTransferDetails for method_type bank_transfer
type BankTransferDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
}

// WireTransferDetails for method_type wire_transfer
type WireTransferDetails struct {
	BankName      string `json:"bank_name"`
	SwiftCode     string `json:"swift_code"`
	AccountNumber string `json:"account_number"`
}

// CreditCardDetails for method_type credit_card
type CreditCardDetails struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// OtherDetails for method_type other
type OtherDetails struct {
	Description string `json:"description"`
}

// DecodeDetails returns the typed detail variant for the method's type
func (pm *PaymentMethod) DecodeDetails() (interface{}, error) {
	switch pm.MethodType {
	case MethodTypeCryptoWallet:
		var d CryptoWalletDetails
		return &d, pm.decodeInto(&d)
	case MethodTypeBankTransfer:
		var d BankTransferDetails
		return &d, pm.decodeInto(&d)
	case MethodTypeWireTransfer:
		var d WireTransferDetails
		return &d, pm.decodeInto(&d)
	case MethodTypeCreditCard:
		var d CreditCardDetails
		return &d, pm.decodeInto(&d)
	case MethodTypeOther:
		var d OtherDetails
		return &d, pm.decodeInto(&d)
	default:
		return nil, NewValidationError("method_type", fmt.Sprintf("unknown payment method type %q", pm.MethodType))
	}
}

func (pm *PaymentMethod) decodeInto(dest interface{}) error {
	if len(pm.Details) == 0 {
		return NewValidationError("details", "missing payment method details")
	}
	if err := json.Unmarshal([]byte(pm.Details), dest); err != nil {
		return NewValidationError("details", fmt.Sprintf("malformed details payload: %v", err))
	}
	return nil
}

// ValidateDetails checks the detail payload against its variant schema
func (pm *PaymentMethod) ValidateDetails() error {
	decoded, err := pm.DecodeDetails()
	if err != nil {
		return err
	}
	switch d := decoded.(type) {
	case *CryptoWalletDetails:
		if d.Network == "" || d.Address == "" {
			return NewValidationError("details", "crypto wallet requires network and address")
		}
	case *BankTransferDetails:
		if d.BankName == "" || d.AccountNumber == "" {
			return NewValidationError("details", "bank transfer requires bank name and account number")
		}
	case *WireTransferDetails:
		if d.BankName == "" || d.SwiftCode == "" || d.AccountNumber == "" {
			return NewValidationError("details", "wire transfer requires bank name, swift code and account number")
		}
	case *CreditCardDetails:
		if d.Last4 == "" || d.ExpMonth < 1 || d.ExpMonth > 12 || d.ExpYear < 2000 {
			return NewValidationError("details", "credit card requires last4 and a valid expiry")
		}
	case *OtherDetails:
		if d.Description == "" {
			return NewValidationError("details", "description required")
		}
	}
	return nil
}

// EncodeDetails marshals a typed variant into the stored payload form
func EncodeDetails(details interface{}) (RawDetails, error) {
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment details: %w", err)
	}
	return RawDetails(b), nil
}
