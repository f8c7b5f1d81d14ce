package domain

import (
	"errors"
	"fmt"
)

// ValidationError — некорректный вход на границе API. Отклоняется
// синхронно, до какого-либо обращения к хранилищу; в ответе называем
// конкретное поле и нарушенное ограничение.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// IsValidation сообщает, является ли ошибка (в любой обертке) ошибкой
// валидации входа.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// checkUnit проверяет попадание значения в [0,1]. Значения за пределами
// диапазона отклоняем, а не молча обрезаем.
func checkUnit(field string, v float64) error {
	if v < 0 || v > 1 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be within [0,1], got %g", v),
		}
	}
	return nil
}

// prefixField дополняет путь поля для вложенных структур
// (например face_event.confidence).
func prefixField(prefix string, err error) error {
	var v *ValidationError
	if errors.As(err, &v) {
		return &ValidationError{Field: prefix + "." + v.Field, Message: v.Message}
	}
	return err
}
