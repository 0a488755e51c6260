package analytics

import "vizlab-service/internal/models"

// NonFinitePolicy правило для точек с нечисловым значением
type NonFinitePolicy int

const (
	// ExcludeNonFinite точки с NaN/±Inf по любой оси отбрасываются
	ExcludeNonFinite NonFinitePolicy = iota
	// IncludeNonFinite точки сохраняются, значения кодируются как null
	IncludeNonFinite
)

// Scatter сопоставляет два отношения по индексу (до меньшей длины) и делит точки
// на норму и атаку. Метка точки - максимум меток двух отношений.
func Scatter(x, y *models.RatioSignal, policy NonFinitePolicy) models.ScatterResponse {
	resp := models.ScatterResponse{
		XName:  x.Name,
		YName:  y.Name,
		Idle:   models.ScatterPoints{X: models.Series{}, Y: models.Series{}},
		Attack: models.ScatterPoints{X: models.Series{}, Y: models.Series{}},
	}

	n := x.Len()
	if y.Len() < n {
		n = y.Len()
	}
	for i := 0; i < n; i++ {
		if policy == ExcludeNonFinite && !(x.Values.FiniteAt(i) && y.Values.FiniteAt(i)) {
			resp.Dropped++
			continue
		}
		label := labelAt(x.Labels, i)
		if l := labelAt(y.Labels, i); l > label {
			label = l
		}
		pts := &resp.Idle
		if label == 1 {
			pts = &resp.Attack
		}
		pts.X = append(pts.X, x.Values[i])
		pts.Y = append(pts.Y, y.Values[i])
	}
	return resp
}

func labelAt(labels []int, i int) int {
	if i < len(labels) {
		return labels[i]
	}
	return 0
}
