// Package profile maps a requested (processing type, quality) pair to the
// engine options used to derive a playable artifact.
//
// Selection is pure: nothing here touches the filesystem. Output locations
// are resolved by the caller and passed to Profile.Args.
package profile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

// ErrInvalidProfile indicates an unrecognized processing type.
var ErrInvalidProfile = errors.New("invalid profile")

// ProcessingType selects the derivation mode.
type ProcessingType string

const (
	Streaming ProcessingType = "streaming"
	Convert   ProcessingType = "convert"
)

// Quality selects a tier for the convert mode.
type Quality string

const (
	Low    Quality = "low"
	Medium Quality = "medium"
	High   Quality = "high"
)

// DefaultQuality is used when no quality, or an unknown one, is requested.
const DefaultQuality = Medium

// IsValid reports whether q is one of the known tiers.
func (q Quality) IsValid() bool {
	switch q {
	case Low, Medium, High:
		return true
	}
	return false
}

// RenditionKind describes the shape of the main artifact.
type RenditionKind string

const (
	Segmented  RenditionKind = "segmented"
	SingleFile RenditionKind = "single-file"
)

// PlaylistName is the file name of a segmented rendition's entry point.
const PlaylistName = "playlist.m3u8"

// SegmentPattern is the file name pattern of segmented rendition chunks.
const SegmentPattern = "segment_%03d.ts"

// Profile is one resolved derivation profile.
type Profile struct {
	Name           string
	ProcessingType ProcessingType
	Kind           RenditionKind
	// Quality is the effective tier. It is empty for streaming.
	Quality Quality
	// QualityApplied is false when the requested quality had no effect on
	// the options. Streaming currently produces a single ladder rung.
	QualityApplied bool
	Options        []string
}

// Args returns the ordered engine options for writing to output.
func (p Profile) Args(output string) []string {
	args := make([]string, 0, len(p.Options)+2)
	args = append(args, p.Options...)
	if p.Kind == Segmented {
		args = append(args, "-hls_segment_filename", filepath.Join(filepath.Dir(output), SegmentPattern))
	}
	return args
}

type convertTier struct {
	crf          int
	height       int
	audioBitrate string
}

var convertTiers = map[Quality]convertTier{
	Low:    {crf: 28, height: 480, audioBitrate: "128k"},
	Medium: {crf: 23, height: 720, audioBitrate: "192k"},
	High:   {crf: 18, height: 1080, audioBitrate: "256k"},
}

// Select resolves the profile for a processing type and quality.
//
// Streaming ignores quality. Convert falls back to DefaultQuality for an
// empty or unknown tier.
func Select(pt ProcessingType, q Quality) (Profile, error) {
	switch pt {
	case Streaming:
		return Profile{
			Name:           "hls",
			ProcessingType: Streaming,
			Kind:           Segmented,
			QualityApplied: false,
			Options: []string{
				"-c:v", "libx264",
				"-c:a", "aac",
				"-hls_time", "10",
				"-hls_list_size", "0",
				"-f", "hls",
			},
		}, nil
	case Convert:
		if !q.IsValid() {
			q = DefaultQuality
		}
		tier := convertTiers[q]
		return Profile{
			Name:           "mp4-" + string(q),
			ProcessingType: Convert,
			Kind:           SingleFile,
			Quality:        q,
			QualityApplied: true,
			Options: []string{
				"-c:v", "libx264",
				"-preset", "medium",
				"-crf", strconv.Itoa(tier.crf),
				"-vf", fmt.Sprintf("scale=-2:%d", tier.height),
				"-c:a", "aac",
				"-b:a", tier.audioBitrate,
			},
		}, nil
	default:
		return Profile{}, fmt.Errorf("%w: processing type %q", ErrInvalidProfile, pt)
	}
}

// Thumbnail sizing and position.
const (
	ThumbnailWidth    = 640
	ThumbnailHeight   = 360
	ThumbnailPosition = 0.10
)

// Thumbnail returns the profile extracting one preview frame from a source
// of the given duration. A non-positive duration seeks to the first frame.
func Thumbnail(durationSeconds float64) Profile {
	offset := 0.0
	if durationSeconds > 0 {
		offset = durationSeconds * ThumbnailPosition
	}
	return Profile{
		Name:           "thumbnail",
		Kind:           SingleFile,
		QualityApplied: false,
		Options: []string{
			"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
			"-vframes", "1",
			"-vf", fmt.Sprintf("scale=%d:%d", ThumbnailWidth, ThumbnailHeight),
			"-q:v", "2",
		},
	}
}
