package log

import "log/slog"

func InstanceID[T ~string](id T) slog.Attr {
	return slog.String("instance_id", string(id))
}

func FlowID(category, name string) slog.Attr {
	return slog.String("flow_id", category+"/"+name)
}

func StepID[T ~string](id T) slog.Attr {
	return slog.String("step_id", string(id))
}

func Path[T ~[]string](path T) slog.Attr {
	return slog.Any("path", []string(path))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func EventKey[T ~string](key T) slog.Attr {
	return slog.String("event_key", string(key))
}

func Repeat(idx int) slog.Attr {
	return slog.Int("repeat", idx)
}

func Retry(idx int) slog.Attr {
	return slog.Int("retry", idx)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
