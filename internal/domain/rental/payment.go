package rental

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the discriminator of the rent and deposit payment variants
type PaymentMethod string

const (
	MethodCash          PaymentMethod = "cash"
	MethodCheque        PaymentMethod = "cheque"
	MethodBankTransfer  PaymentMethod = "bank_transfer"
	MethodElectronic    PaymentMethod = "electronic_payment"
	MethodCashAndCheque PaymentMethod = "cash_and_cheque" // deposit only
)

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// RentPayment is the closed set of ways rent can be settled:
// CashPayment, ChequePayment, BankTransferPayment and ElectronicPayment.
type RentPayment interface {
	Method() PaymentMethod
	isRentPayment()
}

// DepositPayment is the closed set of ways the deposit can be settled.
// It is RentPayment's set plus CashAndChequePayment.
type DepositPayment interface {
	Method() PaymentMethod
	isDepositPayment()
}

// CashPayment is settled in cash against a receipt
type CashPayment struct {
	ReceiptNumber string `json:"receipt_number"`
}

// BankTransferPayment is settled by transfer against a receipt
type BankTransferPayment struct {
	ReceiptNumber string `json:"receipt_number"`
}

// ElectronicPayment is settled through a payment terminal or gateway against a receipt
type ElectronicPayment struct {
	ReceiptNumber string `json:"receipt_number"`
}

// BankAccount identifies the account the cheques are drawn on
type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
}

// ChequePayment is settled by post-dated cheques
type ChequePayment struct {
	Lines []ChequeLine `json:"lines"`
	Bank  BankAccount  `json:"bank"`
	Payer Payer        `json:"payer"`
}

// CashAndChequePayment splits the deposit between cash and cheques
type CashAndChequePayment struct {
	CashAmount        decimal.Decimal `json:"cash_amount"`
	CashReceiptNumber string          `json:"cash_receipt_number"`
	Lines             []ChequeLine    `json:"lines"`
	Bank              BankAccount     `json:"bank"`
	Payer             Payer           `json:"payer"`
}

func (CashPayment) Method() PaymentMethod          { return MethodCash }
func (BankTransferPayment) Method() PaymentMethod  { return MethodBankTransfer }
func (ElectronicPayment) Method() PaymentMethod    { return MethodElectronic }
func (ChequePayment) Method() PaymentMethod        { return MethodCheque }
func (CashAndChequePayment) Method() PaymentMethod { return MethodCashAndCheque }

func (CashPayment) isRentPayment()         {}
func (BankTransferPayment) isRentPayment() {}
func (ElectronicPayment) isRentPayment()   {}
func (ChequePayment) isRentPayment()       {}

func (CashPayment) isDepositPayment()          {}
func (BankTransferPayment) isDepositPayment()  {}
func (ElectronicPayment) isDepositPayment()    {}
func (ChequePayment) isDepositPayment()        {}
func (CashAndChequePayment) isDepositPayment() {}

// PayerKind is the discriminator of the payer variants
type PayerKind string

const (
	PayerTenant          PayerKind = "tenant"
	PayerOtherIndividual PayerKind = "other_individual"
	PayerCompany         PayerKind = "company"
)

// Payer identifies who signs the cheques
type Payer interface {
	Kind() PayerKind
	isPayer()
}

// TenantPayer means the contract's tenant signs the cheques; their identity is already on file
type TenantPayer struct{}

// IndividualPayer is a person other than the tenant
type IndividualPayer struct {
	FullName         string     `json:"full_name"`
	NationalID       string     `json:"national_id"`
	NationalIDExpiry *time.Time `json:"national_id_expiry,omitempty"`
	Phone            string     `json:"phone,omitempty"`
}

// CompanyPayer is a company paying on behalf of the tenant
type CompanyPayer struct {
	CompanyName         string `json:"company_name"`
	RegistrationNumber  string `json:"registration_number"`
	SignatoryName       string `json:"signatory_name"`
	SignatoryNationalID string `json:"signatory_national_id"`
}

func (TenantPayer) Kind() PayerKind     { return PayerTenant }
func (IndividualPayer) Kind() PayerKind { return PayerOtherIndividual }
func (CompanyPayer) Kind() PayerKind    { return PayerCompany }

func (TenantPayer) isPayer()     {}
func (IndividualPayer) isPayer() {}
func (CompanyPayer) isPayer()    {}

// chequeLinesOf returns the cheque lines carried by a payment variant, if any
func chequeLinesOf(p any) []ChequeLine {
	switch v := p.(type) {
	case ChequePayment:
		return v.Lines
	case *ChequePayment:
		return v.Lines
	case CashAndChequePayment:
		return v.Lines
	case *CashAndChequePayment:
		return v.Lines
	}
	return nil
}

// JSON encoding. Variants are written as flat objects carrying their discriminator
// ("method" for payments, "kind" for payers).

func encodeTagged(tagKey, tag string, v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields[tagKey], _ = json.Marshal(tag)
	return json.Marshal(fields)
}

func peekTag(data []byte, tagKey string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", err
	}
	raw, ok := fields[tagKey]
	if !ok {
		return "", fmt.Errorf("missing %q discriminator", tagKey)
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", fmt.Errorf("invalid %q discriminator: %w", tagKey, err)
	}
	return tag, nil
}

func isNullJSON(data []byte) bool {
	return len(data) == 0 || string(data) == "null"
}

// MarshalPayer encodes a payer variant; nil encodes as nothing.
func MarshalPayer(p Payer) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	return encodeTagged("kind", string(p.Kind()), p)
}

// UnmarshalPayer decodes a payer variant by its "kind" discriminator.
func UnmarshalPayer(data []byte) (Payer, error) {
	if isNullJSON(data) {
		return nil, nil
	}
	kind, err := peekTag(data, "kind")
	if err != nil {
		return nil, err
	}
	switch PayerKind(kind) {
	case PayerTenant:
		return TenantPayer{}, nil
	case PayerOtherIndividual:
		var p IndividualPayer
		err = json.Unmarshal(data, &p)
		return p, err
	case PayerCompany:
		var p CompanyPayer
		err = json.Unmarshal(data, &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown payer kind %q", kind)
}

type chequePaymentAlias ChequePayment

// MarshalJSON implements json.Marshaler
func (p ChequePayment) MarshalJSON() ([]byte, error) {
	payer, err := MarshalPayer(p.Payer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		chequePaymentAlias
		Payer json.RawMessage `json:"payer,omitempty"`
	}{chequePaymentAlias(p), payer})
}

// UnmarshalJSON implements json.Unmarshaler
func (p *ChequePayment) UnmarshalJSON(data []byte) error {
	aux := struct {
		*chequePaymentAlias
		Payer json.RawMessage `json:"payer"`
	}{chequePaymentAlias: (*chequePaymentAlias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payer, err := UnmarshalPayer(aux.Payer)
	if err != nil {
		return err
	}
	p.Payer = payer
	return nil
}

type cashAndChequeAlias CashAndChequePayment

// MarshalJSON implements json.Marshaler
func (p CashAndChequePayment) MarshalJSON() ([]byte, error) {
	payer, err := MarshalPayer(p.Payer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		cashAndChequeAlias
		Payer json.RawMessage `json:"payer,omitempty"`
	}{cashAndChequeAlias(p), payer})
}

// UnmarshalJSON implements json.Unmarshaler
func (p *CashAndChequePayment) UnmarshalJSON(data []byte) error {
	aux := struct {
		*cashAndChequeAlias
		Payer json.RawMessage `json:"payer"`
	}{cashAndChequeAlias: (*cashAndChequeAlias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payer, err := UnmarshalPayer(aux.Payer)
	if err != nil {
		return err
	}
	p.Payer = payer
	return nil
}

// MarshalRentPayment encodes a rent payment variant with its "method" discriminator
func MarshalRentPayment(p RentPayment) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	return encodeTagged("method", string(p.Method()), p)
}

// UnmarshalRentPayment decodes a rent payment variant
func UnmarshalRentPayment(data []byte) (RentPayment, error) {
	if isNullJSON(data) {
		return nil, nil
	}
	method, err := peekTag(data, "method")
	if err != nil {
		return nil, err
	}
	switch PaymentMethod(method) {
	case MethodCash:
		var p CashPayment
		err = json.Unmarshal(data, &p)
		return p, err
	case MethodBankTransfer:
		var p BankTransferPayment
		err = json.Unmarshal(data, &p)
		return p, err
	case MethodElectronic:
		var p ElectronicPayment
		err = json.Unmarshal(data, &p)
		return p, err
	case MethodCheque:
		var p ChequePayment
		err = json.Unmarshal(data, &p)
		return p, err
	}
	return nil, fmt.Errorf("unsupported rent payment method %q", method)
}

// MarshalDepositPayment encodes a deposit payment variant with its "method" discriminator
func MarshalDepositPayment(p DepositPayment) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	return encodeTagged("method", string(p.Method()), p)
}

// UnmarshalDepositPayment decodes a deposit payment variant
func UnmarshalDepositPayment(data []byte) (DepositPayment, error) {
	if isNullJSON(data) {
		return nil, nil
	}
	method, err := peekTag(data, "method")
	if err != nil {
		return nil, err
	}
	if PaymentMethod(method) == MethodCashAndCheque {
		var p CashAndChequePayment
		err = json.Unmarshal(data, &p)
		return p, err
	}
	rent, err := UnmarshalRentPayment(data)
	if err != nil {
		return nil, fmt.Errorf("unsupported deposit payment: %w", err)
	}
	return rent.(DepositPayment), nil
}
