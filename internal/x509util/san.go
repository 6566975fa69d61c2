package x509util

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"

	"github.com/hostweave/certmgr/internal/certerr"
)

// SANKind discriminates subject alternative name entries.
type SANKind int

const (
	// SANDNSName is a dNSName GeneralName.
	SANDNSName SANKind = iota

	// SANIPAddress is an iPAddress GeneralName.
	SANIPAddress
)

// GeneralName tag numbers from RFC 5280 section 4.2.1.6.
const (
	tagDNSName   = 2
	tagIPAddress = 7
)

// SANEntry is one subject alternative name, classified by kind.
type SANEntry struct {
	Kind  SANKind
	Value string
}

// String renders the entry with its type prefix, e.g. "DNS:example.com".
func (e SANEntry) String() string {
	if e.Kind == SANIPAddress {
		return "IP:" + e.Value
	}
	return "DNS:" + e.Value
}

// ClassifySANs maps each input name to a SANEntry, in order. A name is an
// IP literal when net.ParseIP accepts it, a DNS name otherwise.
func ClassifySANs(names []string) ([]SANEntry, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one DNS name is required: %w", certerr.ErrInvalidArgument)
	}
	entries := make([]SANEntry, 0, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("empty DNS name: %w", certerr.ErrInvalidArgument)
		}
		if ip := net.ParseIP(name); ip != nil {
			entries = append(entries, SANEntry{Kind: SANIPAddress, Value: ip.String()})
			continue
		}
		entries = append(entries, SANEntry{Kind: SANDNSName, Value: name})
	}
	return entries, nil
}

// SANExtension builds the subjectAltName extension with one GeneralName per
// input name, emitted in input order. Go's x509 template fields group DNS
// and IP entries separately; encoding the GeneralNames sequence directly
// preserves the caller's ordering.
func SANExtension(names []string) (pkix.Extension, error) {
	entries, err := ClassifySANs(names)
	if err != nil {
		return pkix.Extension{}, err
	}

	generalNames := make([]asn1.RawValue, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case SANIPAddress:
			ip := net.ParseIP(entry.Value)
			// 4-byte form for IPv4 per RFC 5280
			if v4 := ip.To4(); v4 != nil {
				ip = v4
			}
			generalNames = append(generalNames, asn1.RawValue{
				Class: asn1.ClassContextSpecific,
				Tag:   tagIPAddress,
				Bytes: ip,
			})
		default:
			generalNames = append(generalNames, asn1.RawValue{
				Class: asn1.ClassContextSpecific,
				Tag:   tagDNSName,
				Bytes: []byte(entry.Value),
			})
		}
	}

	value, err := asn1.Marshal(generalNames)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal GeneralNames: %w", err)
	}

	return pkix.Extension{
		Id:       OIDExtSubjectAltName,
		Critical: false,
		Value:    value,
	}, nil
}

// SubjectAltNames extracts the SAN entries of a certificate in the order
// they appear in the extension. Only dNSName and iPAddress entries are
// returned; other GeneralName forms are skipped.
func SubjectAltNames(cert *x509.Certificate) ([]SANEntry, error) {
	var raw []byte
	for _, ext := range cert.Extensions {
		if OIDEqual(ext.Id, OIDExtSubjectAltName) {
			raw = ext.Value
			break
		}
	}
	if raw == nil {
		return nil, nil
	}

	var generalNames []asn1.RawValue
	if _, err := asn1.Unmarshal(raw, &generalNames); err != nil {
		return nil, fmt.Errorf("failed to parse subjectAltName: %w", err)
	}

	var entries []SANEntry
	for _, gn := range generalNames {
		if gn.Class != asn1.ClassContextSpecific {
			continue
		}
		switch gn.Tag {
		case tagDNSName:
			entries = append(entries, SANEntry{Kind: SANDNSName, Value: string(gn.Bytes)})
		case tagIPAddress:
			entries = append(entries, SANEntry{Kind: SANIPAddress, Value: net.IP(gn.Bytes).String()})
		}
	}
	return entries, nil
}
