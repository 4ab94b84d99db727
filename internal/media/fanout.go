package media

import (
	"context"
	"sync"

	"github.com/hanseol/eternal-journey/backend/internal/logging"
	"github.com/hanseol/eternal-journey/backend/internal/model/chat"
)

// ImageGenerator renders a portrait for the given scene tags.
type ImageGenerator interface {
	Generate(ctx context.Context, sceneTags string) (chat.ImageResult, error)
}

// AudioGenerator synthesizes speech for a reply.
type AudioGenerator interface {
	Generate(ctx context.Context, text, emotionTag string) (chat.AudioResult, error)
}

// Attachments carries the optional side outputs of a turn. A nil field means
// that capability was disabled or failed.
type Attachments struct {
	Image *chat.ImageResult
	Audio *chat.AudioResult
}

// Fanout runs image and audio generation concurrently. Either generator may
// be nil, which disables that branch.
type Fanout struct {
	images ImageGenerator
	audio  AudioGenerator
}

func NewFanout(images ImageGenerator, audio AudioGenerator) *Fanout {
	return &Fanout{images: images, audio: audio}
}

// ImageEnabled reports whether the image branch is wired.
func (f *Fanout) ImageEnabled() bool { return f.images != nil }

// AudioEnabled reports whether the audio branch is wired.
func (f *Fanout) AudioEnabled() bool { return f.audio != nil }

// Options selects which branches run for a single request. A branch runs only
// when it is both wired and requested.
type Options struct {
	Image bool
	Audio bool
}

// Generate runs the requested branches and waits for all of them. Each branch
// fails independently; a failed branch yields a nil attachment and never
// aborts the other.
func (f *Fanout) Generate(ctx context.Context, result chat.Result, sceneTags string, opts Options) Attachments {
	var (
		wg          sync.WaitGroup
		attachments Attachments
	)

	if f.images != nil && opts.Image {
		wg.Add(1)
		go func() {
			defer wg.Done()
			image, err := f.images.Generate(ctx, sceneTags)
			if err != nil {
				logging.Warn().Err(err).Msg("image generation failed")
				return
			}
			attachments.Image = &image
		}()
	}

	if f.audio != nil && opts.Audio {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := f.audio.Generate(ctx, result.Response, result.EmotionTag)
			if err != nil {
				logging.Warn().Err(err).Msg("audio generation failed")
				return
			}
			attachments.Audio = &audio
		}()
	}

	wg.Wait()
	return attachments
}
