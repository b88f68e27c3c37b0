package logger

import (
	"github.com/sirupsen/logrus"
)

// Log — глобальный логгер приложения. Создаётся сразу, чтобы пакеты,
// захватывающие его на этапе init, получали действующий экземпляр.
var Log = logrus.New()

// Init настраивает уровень и формат структурированного логгера.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// JSON формат для production, text устанавливается отдельно для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// WithComponent возвращает entry с полем component; сервисы используют его
// для единообразной маркировки записей.
func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
