package models

// InstrumentType identifies the kind of payment instrument.
type InstrumentType string

const (
	InstrumentFPX     InstrumentType = "fpx"
	InstrumentEWallet InstrumentType = "ewallet"
	InstrumentCard    InstrumentType = "card"
)

// Valid reports whether t is a known instrument type.
func (t InstrumentType) Valid() bool {
	switch t {
	case InstrumentFPX, InstrumentEWallet, InstrumentCard:
		return true
	}
	return false
}

// UsesBalance reports whether instruments of this type carry a stored balance.
// Cards carry a credit limit instead.
func (t InstrumentType) UsesBalance() bool {
	return t == InstrumentFPX || t == InstrumentEWallet
}

// RequiresCredential reports whether a PIN must be supplied at checkout.
// Cards are treated as pre-authorized.
func (t InstrumentType) RequiresCredential() bool {
	return t.UsesBalance()
}

// Instrument is a stored payment method owned by one user.
//
// Exactly one of Balance and CreditLimit is non-nil, chosen by Type:
// fpx/ewallet use Balance, card uses CreditLimit. Both are never negative.
type Instrument struct {
	ID             string
	OwnerID        string
	Type           InstrumentType
	DisplayName    string
	CredentialHash string
	IsDefault      bool
	Balance        *Cents
	CreditLimit    *Cents
	CreatedAt      int64
}

// Available returns the spendable amount: the balance or the remaining credit limit.
func (i *Instrument) Available() Cents {
	if i.Balance != nil {
		return *i.Balance
	}
	if i.CreditLimit != nil {
		return *i.CreditLimit
	}
	return 0
}
