package models

import "errors"

// Классы ошибок сервиса. Компоненты оборачивают их через fmt.Errorf("...: %w"),
// HTTP слой сопоставляет их с кодами ответа через errors.Is.
var (
	// ErrNotFound неизвестное устройство, workload, run, метрика или отсутствующий файл
	ErrNotFound = errors.New("not found")
	// ErrMalformedData файл данных не читается как числовая последовательность
	ErrMalformedData = errors.New("malformed data")
	// ErrConfig конфигурация устройства не разбирается или не проходит схему
	ErrConfig = errors.New("invalid device config")
	// ErrEmptyRegistry после сборки реестра не осталось ни одного устройства
	ErrEmptyRegistry = errors.New("empty registry")
	// ErrInvalidRequest некорректные параметры запроса
	ErrInvalidRequest = errors.New("invalid request")
)
