package urls

// Home is the project page.
const Home = "https://github.com/regador/regador"

// Troubleshooting covers controllers that are not discovered or do not
// answer.
const Troubleshooting = Home + "/blob/main/docs/troubleshooting.md"

// HistorySetup explains the history section of the config file and where
// to find the ThingSpeak channel ID and read key.
const HistorySetup = Home + "/blob/main/docs/history.md"

// Simulator documents regador-sim.
const Simulator = Home + "/blob/main/docs/simulator.md"
