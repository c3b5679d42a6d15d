package adapter

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// xmpHeader is the APP1 namespace signature that marks an XMP segment,
// including the trailing NUL.
const xmpHeader = "http://ns.adobe.com/xap/1.0/\x00"

const orbitNamespace = "http://orbitlabs.io/ns/1.0/"

// BuildXMPPacket renders the analysis as a standard XMP packet with Dublin
// Core fields plus a vendor namespace for the analysis bookkeeping.
func BuildXMPPacket(analysis *model.ImageAnalysis) string {
	var b strings.Builder

	b.WriteString("<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n") // begin attribute carries the UTF-8 BOM
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`  <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`    xmlns:dc="http://purl.org/dc/elements/1.1/"` + "\n")
	b.WriteString(`    xmlns:orbit="` + orbitNamespace + `">` + "\n")

	meta := analysis.Metadata
	if meta.Title != "" {
		b.WriteString(`   <dc:title><rdf:Alt><rdf:li xml:lang="x-default">` +
			xmlEscape(meta.Title) + `</rdf:li></rdf:Alt></dc:title>` + "\n")
	}
	if meta.Description != "" {
		b.WriteString(`   <dc:description><rdf:Alt><rdf:li xml:lang="x-default">` +
			xmlEscape(meta.Description) + `</rdf:li></rdf:Alt></dc:description>` + "\n")
	}
	if len(meta.Tags) > 0 {
		b.WriteString(`   <dc:subject><rdf:Bag>` + "\n")
		for _, tag := range meta.Tags {
			b.WriteString(`    <rdf:li>` + xmlEscape(tag) + `</rdf:li>` + "\n")
		}
		b.WriteString(`   </rdf:Bag></dc:subject>` + "\n")
	}

	b.WriteString(`   <orbit:analysisType>` + xmlEscape(string(analysis.AnalysisType)) + `</orbit:analysisType>` + "\n")
	b.WriteString(fmt.Sprintf(`   <orbit:confidence>%.2f</orbit:confidence>`+"\n", analysis.Confidence))
	if analysis.ModelVersion != "" {
		b.WriteString(`   <orbit:modelVersion>` + xmlEscape(analysis.ModelVersion) + `</orbit:modelVersion>` + "\n")
	}
	if len(meta.Colors) > 0 {
		b.WriteString(`   <orbit:colors>` + xmlEscape(strings.Join(meta.Colors, ", ")) + `</orbit:colors>` + "\n")
	}
	if len(meta.Objects) > 0 {
		b.WriteString(`   <orbit:objects>` + xmlEscape(strings.Join(meta.Objects, ", ")) + `</orbit:objects>` + "\n")
	}
	ts := analysis.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	b.WriteString(`   <orbit:processedAt>` + ts.UTC().Format(time.RFC3339) + `</orbit:processedAt>` + "\n")

	b.WriteString(`  </rdf:Description>` + "\n")
	b.WriteString(` </rdf:RDF>` + "\n")
	b.WriteString(`</x:xmpmeta>` + "\n")
	b.WriteString(`<?xpacket end="w"?>`)

	return b.String()
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// EmbedXMPJPEG inserts the packet as an APP1 segment right after the JPEG
// SOI marker. An existing XMP segment, if any, is left in place; readers use
// the first one, which is ours.
func EmbedXMPJPEG(jpegData []byte, packet string) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return nil, fmt.Errorf("not a JPEG: missing SOI marker")
	}

	payload := []byte(xmpHeader + packet)
	segLen := len(payload) + 2
	if segLen > 0xFFFF {
		return nil, fmt.Errorf("xmp packet too large for a single APP1 segment (%d bytes)", segLen)
	}

	segment := make([]byte, 0, 4+len(payload))
	segment = append(segment, 0xFF, 0xE1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(segLen))
	segment = append(segment, payload...)

	out := make([]byte, 0, len(jpegData)+len(segment))
	out = append(out, jpegData[:2]...)
	out = append(out, segment...)
	out = append(out, jpegData[2:]...)
	return out, nil
}

// ExtractXMPPacket walks the JPEG segment chain and returns the first
// embedded XMP packet. The second return is false when no packet exists or
// the data is not a JPEG.
func ExtractXMPPacket(jpegData []byte) (string, bool) {
	if len(jpegData) < 4 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return "", false
	}

	i := 2
	for i+4 <= len(jpegData) {
		if jpegData[i] != 0xFF {
			return "", false
		}
		marker := jpegData[i+1]
		// Entropy-coded data follows SOS; no more metadata segments.
		if marker == 0xDA || marker == 0xD9 {
			return "", false
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[i+2 : i+4]))
		if segLen < 2 || i+2+segLen > len(jpegData) {
			return "", false
		}
		body := jpegData[i+4 : i+2+segLen]
		if marker == 0xE1 && bytes.HasPrefix(body, []byte(xmpHeader)) {
			return string(body[len(xmpHeader):]), true
		}
		i += 2 + segLen
	}
	return "", false
}
