package models

import (
	"fmt"
	"strings"
	"time"
)

// ExchangeMethodType tags the ExchangeMethod union.
type ExchangeMethodType string

const (
	MethodInPerson      ExchangeMethodType = "in_person"
	MethodPostal        ExchangeMethodType = "postal"
	MethodDropOffPoint  ExchangeMethodType = "drop_off_point"
	MethodEscrowService ExchangeMethodType = "escrow_service"
)

// Carrier is a postal shipping service.
type Carrier string

const (
	CarrierUSPS  Carrier = "usps"
	CarrierUPS   Carrier = "ups"
	CarrierFedEx Carrier = "fedex"
	CarrierDHL   Carrier = "dhl"
	CarrierOther Carrier = "other"
)

// ParseCarrier normalizes a carrier name. Empty input yields USPS.
func ParseCarrier(v string) (Carrier, error) {
	c := Carrier(strings.ToLower(strings.TrimSpace(v)))
	switch c {
	case "":
		return CarrierUSPS, nil
	case CarrierUSPS, CarrierUPS, CarrierFedEx, CarrierDHL, CarrierOther:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown shipping service %q", ErrValidation, v)
}

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a named place where items change hands.
type Location struct {
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}

// PostalAddress is a shipping address.
type PostalAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// TrackingNumbers hold one number per shipping direction.
type TrackingNumbers struct {
	RequesterToProvider string `json:"requesterToProvider,omitempty"`
	ProviderToRequester string `json:"providerToRequester,omitempty"`
}

// EstimatedDelivery holds one ETA per item. RequesterItem is the item the
// requester sends.
type EstimatedDelivery struct {
	RequesterItem *time.Time `json:"requesterItem,omitempty"`
	ProviderItem  *time.Time `json:"providerItem,omitempty"`
}

// InPersonDetails describe a meetup.
type InPersonDetails struct {
	MeetupLocation Location  `json:"meetupLocation"`
	ScheduledTime  time.Time `json:"scheduledTime"`
}

// PostalDetails describe a two-way shipment.
type PostalDetails struct {
	RequesterAddress  PostalAddress     `json:"requesterAddress"`
	ProviderAddress   PostalAddress     `json:"providerAddress"`
	TrackingNumbers   TrackingNumbers   `json:"trackingNumbers"`
	ShippingService   Carrier           `json:"shippingService"`
	EstimatedDelivery EstimatedDelivery `json:"estimatedDelivery"`
}

// DropOffDetails describe a staffed drop-off point.
type DropOffDetails struct {
	Location       Location `json:"location"`
	OperatingHours string   `json:"operatingHours"`
	ContactInfo    string   `json:"contactInfo"`
}

// EscrowDetails are passed through to the escrow operator untouched.
type EscrowDetails struct {
	Provider   string            `json:"provider,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ExchangeMethod is a tagged union: exactly the member matching Type is set.
type ExchangeMethod struct {
	Type     ExchangeMethodType `json:"type"`
	InPerson *InPersonDetails   `json:"inPerson,omitempty"`
	Postal   *PostalDetails     `json:"postal,omitempty"`
	DropOff  *DropOffDetails    `json:"dropOffPoint,omitempty"`
	Escrow   *EscrowDetails     `json:"escrow,omitempty"`
}

// Normalize fills defaults (carrier, country) in place.
func (m *ExchangeMethod) Normalize() {
	if m == nil || m.Postal == nil {
		return
	}
	if m.Postal.ShippingService == "" {
		m.Postal.ShippingService = CarrierUSPS
	}
	for _, addr := range []*PostalAddress{&m.Postal.RequesterAddress, &m.Postal.ProviderAddress} {
		if addr.Country == "" {
			addr.Country = "US"
		}
	}
}

// Validate checks that the descriptor is fully populated for its variant
// and carries no other variant's details.
func (m *ExchangeMethod) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: exchange method is required", ErrValidation)
	}

	set := 0
	for _, present := range []bool{m.InPerson != nil, m.Postal != nil, m.DropOff != nil, m.Escrow != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("%w: exchange method %q carries details for more than one type", ErrValidation, m.Type)
	}

	switch m.Type {
	case MethodInPerson:
		if m.InPerson == nil {
			return fmt.Errorf("%w: in_person requires meetup details", ErrValidation)
		}
		if m.InPerson.MeetupLocation.Address == "" {
			return fmt.Errorf("%w: meetup location address is required", ErrValidation)
		}
		if m.InPerson.ScheduledTime.IsZero() {
			return fmt.Errorf("%w: meetup time is required", ErrValidation)
		}
	case MethodPostal:
		if m.Postal == nil {
			return fmt.Errorf("%w: postal requires shipping details", ErrValidation)
		}
		if err := m.Postal.RequesterAddress.validate("requester"); err != nil {
			return err
		}
		if err := m.Postal.ProviderAddress.validate("provider"); err != nil {
			return err
		}
		if _, err := ParseCarrier(string(m.Postal.ShippingService)); err != nil {
			return err
		}
	case MethodDropOffPoint:
		if m.DropOff == nil {
			return fmt.Errorf("%w: drop_off_point requires location details", ErrValidation)
		}
		if m.DropOff.Location.Address == "" {
			return fmt.Errorf("%w: drop-off address is required", ErrValidation)
		}
		if m.DropOff.OperatingHours == "" {
			return fmt.Errorf("%w: drop-off operating hours are required", ErrValidation)
		}
	case MethodEscrowService:
		if m.Escrow == nil {
			return fmt.Errorf("%w: escrow_service requires escrow details", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown exchange method %q", ErrValidation, m.Type)
	}
	return nil
}

func (a PostalAddress) validate(who string) error {
	if a.Street == "" || a.City == "" || a.ZipCode == "" {
		return fmt.Errorf("%w: %s address needs street, city and zip code", ErrValidation, who)
	}
	return nil
}
