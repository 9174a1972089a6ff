// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	applicationMediaPrefix = "m=application "
	dataChannelFormat      = "webrtc-datachannel"
)

// InterceptOffer patches the transport protocol token of the offer's
// application media line. With TransportUnset it returns rawOffer
// unchanged. Otherwise only the token's bytes change; every other line
// and every line terminator is preserved.
//
// The patch does not touch the stack's internal offer object. A stack
// that only accepts its own offer verbatim rejects the patched text at
// SetLocalDescription.
func InterceptOffer(rawOffer string, forced TransportKind) (string, error) {
	if forced == TransportUnset {
		return rawOffer, nil
	}
	protocol := forced.Protocol()
	if protocol == "" {
		return "", fmt.Errorf("%w: unsupported transport %s", ErrMalformedOffer, forced)
	}

	start, end, err := locateProtocolToken(rawOffer)
	if err != nil {
		return "", err
	}
	return rawOffer[:start] + protocol + rawOffer[end:], nil
}

// locateProtocolToken returns the byte range of the protocol field
// (the third field) of the only m=application line in offer.
func locateProtocolToken(offer string) (start, end int, err error) {
	found := false
	lineStart := 0
	for lineStart < len(offer) {
		lineEnd := strings.IndexByte(offer[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(offer)
		} else {
			lineEnd += lineStart
		}
		line := strings.TrimSuffix(offer[lineStart:lineEnd], "\r")

		if strings.HasPrefix(line, applicationMediaPrefix) {
			if found {
				return 0, 0, fmt.Errorf("%w: more than one application media line", ErrMalformedOffer)
			}
			found = true

			fields := strings.Split(line, " ")
			if len(fields) < 4 || fields[2] == "" {
				return 0, 0, fmt.Errorf("%w: application media line %q has too few fields", ErrMalformedOffer, line)
			}
			start = lineStart + len(fields[0]) + 1 + len(fields[1]) + 1
			end = start + len(fields[2])
		}
		lineStart = lineEnd + 1
	}
	if !found {
		return 0, 0, fmt.Errorf("%w: no application media line", ErrMalformedOffer)
	}
	return start, end, nil
}

// MediaParams are the values the synthesized answer echoes from the
// committed offer.
type MediaParams struct {
	// MediaID is the application section's a=mid value.
	MediaID string

	// BundleGroup lists the mids of the offer's a=group:BUNDLE line,
	// or is empty if the offer has none.
	BundleGroup []string

	// Protocol is the application section's protocol token, for
	// example "UDP/DTLS/SCTP".
	Protocol string

	// Format is the application section's format label.
	Format string
}

// ExtractMediaParams parses offer and returns its application section
// parameters. The offer must contain exactly one application section
// carrying a media id.
func ExtractMediaParams(offer string) (MediaParams, error) {
	var description sdp.SessionDescription
	if err := description.UnmarshalString(offer); err != nil {
		return MediaParams{}, fmt.Errorf("%w: %v", ErrMalformedOffer, err)
	}

	var application *sdp.MediaDescription
	for _, media := range description.MediaDescriptions {
		if media.MediaName.Media != "application" {
			continue
		}
		if application != nil {
			return MediaParams{}, fmt.Errorf("%w: more than one application media section", ErrMalformedOffer)
		}
		application = media
	}
	if application == nil {
		return MediaParams{}, fmt.Errorf("%w: no application media section", ErrMalformedOffer)
	}

	mediaID, ok := application.Attribute("mid")
	if !ok || mediaID == "" {
		return MediaParams{}, fmt.Errorf("%w: application media section has no mid", ErrMalformedOffer)
	}

	params := MediaParams{
		MediaID:  mediaID,
		Protocol: strings.Join(application.MediaName.Protos, "/"),
		Format:   dataChannelFormat,
	}
	if len(application.MediaName.Formats) > 0 {
		params.Format = application.MediaName.Formats[0]
	}
	if group, ok := description.Attribute("group"); ok {
		if members, isBundle := strings.CutPrefix(group, "BUNDLE"); isBundle {
			params.BundleGroup = strings.Fields(members)
		}
	}
	return params, nil
}
