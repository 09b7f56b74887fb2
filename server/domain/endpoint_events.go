package domain

type connectionEventKind uint8

const (
	// unknown
	unknown connectionEventKind = iota

	// I/O
	evReadError  // 読み込みに失敗した
	evWriteError // 書き込みに失敗した

	// ctrl
	evClose // サーバー側からの終了要求
)

func (k connectionEventKind) String() string {
	switch k {
	case evReadError:
		return "read_error"
	case evWriteError:
		return "write_error"
	case evClose:
		return "close"
	default:
		return "unknown"
	}
}

type connectionEvent struct {
	kind   connectionEventKind
	reason string
	err    error
}
