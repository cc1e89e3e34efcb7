package processor

import (
	"math"

	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
	"github.com/hpbridge/nasa-ehs-bridge/internal/valuetransform"
)

var (
	heatOutputPoint = &repository.Point{
		Name:    NameHeatOutput,
		Address: AddrHeatOutput,
		Type:    repository.TypeVAR,
		HassOpts: repository.HassOpts{
			DefaultPlatform: "sensor",
			Unit:            "W",
			DeviceClass:     "power",
			StateClass:      "measurement",
		},
	}
	copPoint = &repository.Point{
		Name:    NameCOP,
		Address: AddrCOP,
		Type:    repository.TypeVAR,
		HassOpts: repository.HassOpts{
			DefaultPlatform: "sensor",
			StateClass:      "measurement",
		},
	}
	totalCOPPoint = &repository.Point{
		Name:    NameTotalCOP,
		Address: AddrTotalCOP,
		Type:    repository.TypeVAR,
		HassOpts: repository.HassOpts{
			DefaultPlatform: "sensor",
			StateClass:      "measurement",
		},
	}
)

// triggerDerivedMetrics re-evaluates whichever derived metric depends on
// the point just updated. Synthetic addresses only feed the explicit
// HEAT_OUTPUT -> COP chain and never trigger anything beyond it, preventing
// unbounded recursion through the shared publish path.
func (p *Processor) triggerDerivedMetrics(name string) {
	switch name {
	case PointOutdoorReturnTemp, PointOutdoorSupplyTemp, PointFlowSensorCalc:
		p.evaluateHeatOutput()
	case NameHeatOutput, PointTotalWattmeter:
		p.evaluateCOP()
	case PointAccumulatedWattmeter, PointAccumulatedGeneratedPower:
		p.evaluateTotalCOP()
	}
}

func (p *Processor) evaluateHeatOutput() {
	tw1, ok1 := p.valueOf(PointOutdoorReturnTemp)
	tw2, ok2 := p.valueOf(PointOutdoorSupplyTemp)
	flow, ok3 := p.valueOf(PointFlowSensorCalc)
	if !ok1 || !ok2 || !ok3 {
		return
	}

	v := math.Abs(tw2-tw1) * (flow / 60) * 4190
	v = valuetransform.Round(v, 4)
	if !(v > 0 && v < 15000) {
		return
	}
	p.publishSynthetic(heatOutputPoint, v)
}

func (p *Processor) evaluateCOP() {
	heatOutput, ok1 := p.valueOf(NameHeatOutput)
	wattmeter, ok2 := p.valueOf(PointTotalWattmeter)
	if !ok1 || !ok2 || wattmeter <= 0 {
		return
	}

	v := valuetransform.Round(heatOutput/(wattmeter*1000), 3)
	if !(v > 0 && v < 20) {
		return
	}
	p.publishSynthetic(copPoint, v)
}

func (p *Processor) evaluateTotalCOP() {
	accumulated, ok1 := p.valueOf(PointAccumulatedWattmeter)
	generated, ok2 := p.valueOf(PointAccumulatedGeneratedPower)
	if !ok1 || !ok2 || accumulated <= 0 {
		return
	}

	v := valuetransform.Round(generated/accumulated, 3)
	if !(v > 0 && v < 20) {
		return
	}
	p.publishSynthetic(totalCOPPoint, v)
}

// publishSynthetic records and publishes a derived metric's value through
// the same path as a bus-sourced point, except it is exempt from the
// source filter (it never came from the bus) and re-enters
// triggerDerivedMetrics so HEAT_OUTPUT can feed COP.
func (p *Processor) publishSynthetic(pt *repository.Point, v float64) {
	p.logger.Debug("derived metric", zap.String("point", pt.Name), zap.Float64("value", v))
	p.publish(pt, v)
}
