package pix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lumapratas/backend-luma/internal/pricing"
)

// ErrNotConfigured is returned when the beneficiary record lacks the fields
// required to emit a valid payload, so callers can render a configuration
// prompt instead of a broken payment code.
var ErrNotConfigured = errors.New("pix beneficiary not configured")

const (
	gui = "BR.GOV.BCB.PIX"
	// maxKeyLen matches the longest key the registry accepts (an e-mail
	// address); it also keeps the tag 26 template below the 99-byte TLV
	// length ceiling.
	maxKeyLen       = 77
	maxNameLen      = 25
	maxCityLen      = 15
	maxTxIDLen      = 25
	currencyBRL     = "986"
	countryBR       = "BR"
	categoryGeneric = "0000"
)

// Beneficiary identifies the PIX receiving account, sourced from the
// integrations settings store.
type Beneficiary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Configured reports whether the beneficiary carries the mandatory fields.
func (b Beneficiary) Configured() bool {
	return strings.TrimSpace(b.Key) != "" && strings.TrimSpace(b.Name) != ""
}

// Generate builds a static "Pix Copia e Cola" BR Code payload for the given
// amount. An empty txID falls back to a ROM<epoch-millis> identifier. The
// returned string embeds the CRC16/CCITT-FALSE checksum mandated by the EMV
// QR specification.
func Generate(amount pricing.Money, b Beneficiary, txID string) (string, error) {
	if !b.Configured() {
		return "", ErrNotConfigured
	}
	if txID == "" {
		txID = fmt.Sprintf("ROM%d", time.Now().UnixMilli())
	}
	txID = truncate(txID, maxTxIDLen)

	account := emv("00", gui) + emv("01", truncate(strings.TrimSpace(b.Key), maxKeyLen))

	var payload strings.Builder
	payload.WriteString(emv("00", "01"))
	payload.WriteString(emv("26", account))
	payload.WriteString(emv("52", categoryGeneric))
	payload.WriteString(emv("53", currencyBRL))
	payload.WriteString(emv("54", formatAmount(amount)))
	payload.WriteString(emv("58", countryBR))
	payload.WriteString(emv("59", truncate(strings.TrimSpace(b.Name), maxNameLen)))
	payload.WriteString(emv("60", truncate(strings.TrimSpace(b.City), maxCityLen)))
	payload.WriteString(emv("62", emv("05", txID)))
	payload.WriteString("6304")

	code := payload.String()
	return code + Checksum(code), nil
}

// Checksum computes the CRC16/CCITT-FALSE checksum (poly 0x1021, init 0xFFFF,
// no final XOR) over the payload and returns it as uppercase 4-digit hex.
func Checksum(payload string) string {
	crc := uint32(0xFFFF)
	for i := 0; i < len(payload); i++ {
		crc ^= uint32(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		crc &= 0xFFFF
	}
	return fmt.Sprintf("%04X", crc)
}

// emv renders one tag-length-value field: two-digit id, two-digit zero-padded
// byte length, then the value.
func emv(id, value string) string {
	return id + fmt.Sprintf("%02d", len(value)) + value
}

func formatAmount(amount pricing.Money) string {
	return strconv.FormatFloat(pricing.Round(amount), 'f', 2, 64)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
