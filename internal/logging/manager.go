package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
)

// LoggerManager хранит логгеры компонентов, чтобы уровень можно было сменить после их создания
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var manager = &LoggerManager{loggers: make(map[string]*Logger)}

// GetLoggerManager возвращает общий менеджер логгеров
func GetLoggerManager() *LoggerManager {
	return manager
}

// component возвращает логгер компонента, создавая его при первом обращении.
// Если файл логов открыть не удалось, компонент пишет только в консоль.
func (lm *LoggerManager) component(name string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[name]; ok {
		return l
	}

	l, err := NewLogger(name)
	if err != nil {
		log.Printf("[WARN] [logging] %s: работаем без файла логов: %v", name, err)
		l = &Logger{
			component:       name,
			consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
			minConsoleLevel: INFO,
			minFileLevel:    ERROR + 1,
		}
	}
	lm.loggers[name] = l
	return l
}

// ListComponents возвращает имена зарегистрированных компонентов по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetLogLevel меняет пороги консоли и файла для компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()

	if !ok {
		return fmt.Errorf("logger for component %s not found", component)
	}

	l.mu.Lock()
	l.minConsoleLevel = consoleLevel
	l.minFileLevel = fileLevel
	l.mu.Unlock()
	return nil
}

// GetComponentLogger возвращает логгер компонента
func GetComponentLogger(component string) *Logger {
	return manager.component(component)
}

func GetFlagLogger() *Logger       { return GetComponentLogger("flag") }
func GetRegistryLogger() *Logger   { return GetComponentLogger("registry") }
func GetStorageLogger() *Logger    { return GetComponentLogger("storage") }
func GetEventBusLogger() *Logger   { return GetComponentLogger("eventbus") }
func GetControllerLogger() *Logger { return GetComponentLogger("controller") }
