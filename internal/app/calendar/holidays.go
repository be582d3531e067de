package calendar

import "github.com/staffcast/staffcast/internal/domain"

// Argentina2026 is the national holiday set for 2026 with observed demand
// multipliers.
var Argentina2026 = []domain.HolidaySeed{
	{Date: "2026-01-01", Name: "Año Nuevo", Category: domain.HolidayNational, Impact: 0.3},
	{Date: "2026-02-16", Name: "Carnaval", Category: domain.HolidayNational, Impact: 1.5},
	{Date: "2026-02-17", Name: "Carnaval", Category: domain.HolidayNational, Impact: 1.5},
	{Date: "2026-03-24", Name: "Día de la Memoria", Category: domain.HolidayNational, Impact: 0.5},
	{Date: "2026-04-02", Name: "Día del Veterano", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-04-03", Name: "Viernes Santo", Category: domain.HolidayNational, Impact: 0.8},
	{Date: "2026-05-01", Name: "Día del Trabajador", Category: domain.HolidayNational, Impact: 0.4},
	{Date: "2026-05-25", Name: "Revolución de Mayo", Category: domain.HolidayNational, Impact: 0.6},
	{Date: "2026-06-15", Name: "Día de la Bandera", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-06-20", Name: "Paso a la Inmortalidad del Gral. Güemes", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-07-09", Name: "Día de la Independencia", Category: domain.HolidayNational, Impact: 0.6},
	{Date: "2026-08-17", Name: "Paso a la Inmortalidad del Gral. San Martín", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-10-12", Name: "Día del Respeto a la Diversidad Cultural", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-11-23", Name: "Día de la Soberanía Nacional", Category: domain.HolidayNational, Impact: 0.7},
	{Date: "2026-12-08", Name: "Inmaculada Concepción", Category: domain.HolidayNational, Impact: 0.8},
	{Date: "2026-12-25", Name: "Navidad", Category: domain.HolidayNational, Impact: 0.3},
	{Date: "2026-12-31", Name: "Fin de Año", Category: domain.HolidayNational, Impact: 1.8},
}
