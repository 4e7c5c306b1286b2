package core

import (
	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

// ShouldPublish applies the publish policy to a story about to be written.
func ShouldPublish(mode model.PublishMode, story *model.Story) bool {
	switch mode {
	case model.PublishAll:
		return true
	case model.PublishPublished:
		return story != nil && story.Published && !story.UnpublishedChanges
	case model.PublishPublishedWithChanges:
		return story != nil && story.Published && story.UnpublishedChanges
	default:
		return false
	}
}

// storyWrite builds the write parameters for updating story. lang wins over
// the run-wide publish languages.
func storyWrite(opts model.RunOptions, story *model.Story, releaseID int64, lang string, force bool) provider.StoryWrite {
	if lang == "" {
		lang = opts.PublishLanguages
	}
	return provider.StoryWrite{
		Publish:     ShouldPublish(opts.Publish, story),
		ReleaseID:   releaseID,
		Lang:        lang,
		ForceUpdate: force,
	}
}
