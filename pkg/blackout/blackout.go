package blackout

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultReason = "restricted date."

// File - структура исходного JSON с закрытыми датами
type File struct {
	Year   int            `json:"year"`
	Months []MonthEntries `json:"months"`
	Dates  []DateEntry    `json:"dates"`
}

// MonthEntries - дни месяца через запятую с общей причиной
type MonthEntries struct {
	Month  int    `json:"month"`
	Days   string `json:"days"`
	Reason string `json:"reason"`
}

// DateEntry - отдельная дата в формате yyyy-mm-dd
type DateEntry struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// Day - закрытая дата с причиной
type Day struct {
	Date   time.Time
	Reason string
}

// ParseFile читает JSON файл и возвращает список закрытых дат
func ParseFile(filePath string, loc *time.Location) ([]Day, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	return Parse(data, loc)
}

func Parse(data []byte, loc *time.Location) ([]Day, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	days := []Day{}

	for _, monthData := range file.Months {
		if monthData.Month < 1 || monthData.Month > 12 {
			return nil, fmt.Errorf("invalid month %d", monthData.Month)
		}
		if file.Year == 0 {
			return nil, fmt.Errorf("year is required when months are listed")
		}

		for _, dayStr := range strings.Split(monthData.Days, ",") {
			// Убираем пометки (+, *), которые оставляют в выгрузках календаря
			dayStr = strings.TrimSpace(dayStr)
			dayStr = strings.TrimSuffix(dayStr, "+")
			dayStr = strings.TrimSuffix(dayStr, "*")

			if dayStr == "" {
				continue
			}

			day, err := strconv.Atoi(dayStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse day '%s' in month %d: %w",
					dayStr, monthData.Month, err)
			}

			date := time.Date(file.Year, time.Month(monthData.Month), day, 0, 0, 0, 0, loc)
			if date.Day() != day {
				return nil, fmt.Errorf("day %d does not exist in month %d", day, monthData.Month)
			}

			days = append(days, Day{Date: date, Reason: reasonOrDefault(monthData.Reason)})
		}
	}

	for _, entry := range file.Dates {
		date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(entry.Date), loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date '%s': %w", entry.Date, err)
		}
		days = append(days, Day{Date: date, Reason: reasonOrDefault(entry.Reason)})
	}

	return days, nil
}

// Contains - проверяет, есть ли дата в списке (сравнение по календарному дню)
func Contains(days []Day, date time.Time) bool {
	for _, day := range days {
		if day.Date.Year() == date.Year() &&
			day.Date.Month() == date.Month() &&
			day.Date.Day() == date.Day() {
			return true
		}
	}
	return false
}

func reasonOrDefault(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return defaultReason
	}
	return reason
}
