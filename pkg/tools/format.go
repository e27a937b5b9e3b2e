package tools

import (
	"fmt"
	"time"
)

var (
	turkishMonths   = [...]string{"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"}
	turkishWeekdays = [...]string{"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"}
)

// TurkishDate renders t as "17 Ekim 2026".
func TurkishDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), turkishMonths[t.Month()-1], t.Year())
}

// TurkishDayName renders t as "17 Ekim Cumartesi".
func TurkishDayName(t time.Time) string {
	return fmt.Sprintf("%d %s %s", t.Day(), turkishMonths[t.Month()-1], turkishWeekdays[t.Weekday()])
}
