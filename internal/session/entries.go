package session

import "voxnote/internal/backend"

// EntryKind tags a rendered result.
type EntryKind int

const (
	EntryRecording EntryKind = iota
	EntryTranscript
	EntrySentiment
	EntryAnswer
)

// Link points at a file the backend serves.
type Link struct {
	Label string
	Ref   string // as returned by the backend
	URL   string
}

// Entry is one rendered list item.
type Entry struct {
	Kind  EntryKind
	Title string
	Text  string
	Audio *Link
	Links []Link
}

// Speech is what the text-to-speech player shows.
type Speech struct {
	Label     string
	Sentiment string
	Link      *Link // sentiment file, when present
}

type resolver func(ref string) string

func link(label, ref string, resolve resolver) Link {
	return Link{Label: label, Ref: ref, URL: resolve(ref)}
}

// UploadEntries renders one entry per declared result field: the recording,
// the transcription/history links, and the sentiment.
func UploadEntries(res backend.UploadResult, resolve resolver) []Entry {
	if res.File == "" {
		return nil
	}
	name := PlaybackName(res.File)
	audio := link(name, name, resolve)
	out := []Entry{{Kind: EntryRecording, Title: name, Audio: &audio}}

	if res.Transcription != "" || res.HistoryFile != "" {
		e := Entry{Kind: EntryTranscript, Title: "Transcription"}
		if res.Transcription != "" {
			e.Links = append(e.Links, link("Transcription", res.Transcription, resolve))
		}
		if res.HistoryFile != "" {
			e.Links = append(e.Links, link("History", res.HistoryFile, resolve))
		}
		out = append(out, e)
	}
	if res.Sentiment != "" {
		e := Entry{Kind: EntrySentiment, Title: "Sentiment", Text: res.Sentiment}
		if res.SentimentFile != "" {
			e.Links = append(e.Links, link("Sentiment file", res.SentimentFile, resolve))
		}
		out = append(out, e)
	}
	return out
}

// AnswerEntry renders a question/answer pair with its spoken answer.
func AnswerEntry(ans backend.Answer, resolve resolver) Entry {
	e := Entry{Kind: EntryAnswer, Title: ans.TranscribedQuestion, Text: ans.AnswerText}
	if ans.TTSFile != "" {
		l := link("Answer audio", ans.TTSFile, resolve)
		e.Audio = &l
	}
	return e
}
