package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flotillaproject/flotilla/internal/flotilla/state"
	"github.com/flotillaproject/flotilla/internal/flotilla/view"
)

const MetricPrefix = "flotilla_"

// ExposeClusterMetrics registers a collector exporting the control plane's
// authoritative state as gauges.
func ExposeClusterMetrics(store *state.Store) *ClusterInfoCollector {
	collector := &ClusterInfoCollector{store: store}
	prometheus.MustRegister(collector)
	return collector
}

type ClusterInfoCollector struct {
	store *state.Store
}

var agentCountDesc = prometheus.NewDesc(
	MetricPrefix+"agent_count",
	"Number of registered agents",
	nil,
	nil,
)

var offerCountDesc = prometheus.NewDesc(
	MetricPrefix+"offer_count",
	"Number of outstanding offers",
	nil,
	nil,
)

var taskStateDesc = prometheus.NewDesc(
	MetricPrefix+"task_state_total",
	"Number of tasks per framework and state",
	[]string{"framework", "state"},
	nil,
)

var machineModeDesc = prometheus.NewDesc(
	MetricPrefix+"machine_mode",
	"Number of machines per availability mode",
	[]string{"mode"},
	nil,
)

var agentCapacityDesc = prometheus.NewDesc(
	MetricPrefix+"agent_capacity",
	"Scalar resource capacity of an agent",
	[]string{"agent", "resourceType"},
	nil,
)

func (c *ClusterInfoCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- agentCountDesc
	desc <- offerCountDesc
	desc <- taskStateDesc
	desc <- machineModeDesc
	desc <- agentCapacityDesc
}

func (c *ClusterInfoCollector) Collect(metrics chan<- prometheus.Metric) {
	snapshot := c.store.Snapshot()

	offerCount := 0
	for _, agent := range snapshot.Agents {
		offerCount += len(agent.Offers)
		for _, entry := range agent.Total {
			if entry.Scalar == nil {
				continue
			}
			metrics <- prometheus.MustNewConstMetric(
				agentCapacityDesc,
				prometheus.GaugeValue,
				float64(entry.Scalar.MilliValue())/1000,
				agent.ID,
				entry.Name,
			)
		}
	}
	metrics <- prometheus.MustNewConstMetric(agentCountDesc, prometheus.GaugeValue, float64(len(snapshot.Agents)))
	metrics <- prometheus.MustNewConstMetric(offerCountDesc, prometheus.GaugeValue, float64(offerCount))

	summaries := view.NewTaskStateSummaries(snapshot)
	for _, framework := range snapshot.Frameworks {
		summary := summaries.Framework(framework.ID)
		counts := map[state.TaskState]int{
			state.TaskStaging:  summary.Staging,
			state.TaskStarting: summary.Starting,
			state.TaskRunning:  summary.Running,
			state.TaskFinished: summary.Finished,
			state.TaskKilled:   summary.Killed,
			state.TaskFailed:   summary.Failed,
			state.TaskLost:     summary.Lost,
			state.TaskError:    summary.Error,
		}
		for _, taskState := range state.AllTaskStates {
			metrics <- prometheus.MustNewConstMetric(
				taskStateDesc,
				prometheus.GaugeValue,
				float64(counts[taskState]),
				framework.ID,
				string(taskState),
			)
		}
	}

	modes := map[state.MachineMode]int{}
	for _, machine := range snapshot.Machines {
		modes[machine.Mode]++
	}
	for _, mode := range []state.MachineMode{state.MachineUp, state.MachineDraining, state.MachineDown} {
		metrics <- prometheus.MustNewConstMetric(machineModeDesc, prometheus.GaugeValue, float64(modes[mode]), string(mode))
	}
}
