package editor

// Messages for the tea program

// completionChunkMsg carries one streamed piece of text of generation gen.
type completionChunkMsg struct {
	gen   int
	chunk string
	next  <-chan any
}

// completionDoneMsg ends generation gen. err is nil on success.
type completionDoneMsg struct {
	gen int
	err error
}

// videoSavedMsg reports the result of a save.
type videoSavedMsg struct {
	err error
}
