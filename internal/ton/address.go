package ton

import (
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// AddressForms returns candidate representations of a TON account address in
// fixed priority order: the form as given, the bounceable user-friendly form,
// the non-bounceable form, then the raw workchain:hex form. Backends disagree
// on which convention they index, so callers retry the forms in order and
// stop at the first one that returns data.
func AddressForms(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	forms := []string{raw}

	addr, err := address.ParseAddr(raw)
	if err != nil {
		addr, err = address.ParseRawAddr(raw)
	}
	if err != nil {
		return forms
	}

	seen := map[string]bool{raw: true}
	for _, candidate := range []string{
		addr.Bounce(true).String(),
		addr.Bounce(false).String(),
		addr.StringRaw(),
	} {
		if !seen[candidate] {
			seen[candidate] = true
			forms = append(forms, candidate)
		}
	}
	return forms
}

// ValidAddress reports whether s parses as a TON address in any known form.
func ValidAddress(s string) bool {
	if _, err := address.ParseAddr(s); err == nil {
		return true
	}
	_, err := address.ParseRawAddr(s)
	return err == nil
}
