package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyRecord    = "r"
	KeyStop      = "s"
	KeyAsk       = "a"
	KeyConvert   = "c"
	KeyType      = "t"
	KeyPlay      = "p"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeySpace     = " "
	KeyBackspace = "backspace"
)
